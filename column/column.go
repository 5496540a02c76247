// Copyright (C) 2024 The fastbit Authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package column

import (
	"sync"

	"github.com/colbit/fastbit/bitvec"
	"github.com/colbit/fastbit/index"
	"github.com/colbit/fastbit/ints"
	"github.com/colbit/fastbit/schema"
)

// Column is one attribute across all rows of a Partition: schema,
// cached bounds, the sorted flag, and the concurrency primitives that
// guard its index and mask.
//
// A per-column rwlock (dataMu) guards index swap-out and any rewrite
// of the data file's structure (append, truncate). A
// separate short mutex (fieldMu) guards the cached mask and min/max
// fields; it is never held while acquiring another column's mutex.
type Column struct {
	Name        string
	Description string
	Type        schema.Type
	IndexHint   string

	partition *Partition

	dataMu sync.RWMutex
	idx    *index.Handle

	fieldMu    sync.Mutex
	lower      float64
	upper      float64
	sorted     bool
	mask       *bitvec.Bitvector
	maskLoaded bool
}

// New returns a Column with unset bounds and no cached mask. Call
// Partition.AddColumn to attach it to a partition.
func New(name string, t schema.Type) *Column {
	return &Column{
		Name:  name,
		Type:  t,
		lower: 1,
		upper: 0, // lower > upper: bounds considered unset
		idx:   index.NewHandle(),
	}
}

// Partition returns the owning partition, or nil if unattached.
func (c *Column) Partition() *Partition { return c.partition }

// ElementSize returns the fixed on-disk width of one value, in bytes.
func (c *Column) ElementSize() int { return c.Type.ElementSize() }

// DataPath returns the path to this column's raw value file.
func (c *Column) DataPath() string {
	return c.partition.Dir + "/" + c.Name
}

// MaskPath returns the path to this column's persisted null mask.
func (c *Column) MaskPath() string {
	return c.partition.Dir + "/" + c.Name + ".msk"
}

// IndexPath returns the path to this column's index blob.
func (c *Column) IndexPath() string {
	return c.partition.Dir + "/" + c.Name + ".idx"
}

// DictPath returns the path to this TEXT/CATEGORY column's string
// dictionary sidecar.
func (c *Column) DictPath() string {
	return c.partition.Dir + "/" + c.Name + ".dic"
}

// Bounds returns the cached (lower, upper) pair and whether it is
// considered set (lower <= upper).
func (c *Column) Bounds() (lower, upper float64, ok bool) {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	return c.lower, c.upper, ints.BoundsSet(c.lower, c.upper)
}

// SetBounds updates the cached bounds under fieldMu.
func (c *Column) SetBounds(lower, upper float64) {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	c.lower, c.upper = lower, upper
}

// ClearBounds marks the cached bounds as unset.
func (c *Column) ClearBounds() {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	c.lower, c.upper = 1, 0
}

// Sorted reports whether the caller has declared this column's data
// file strictly ascending after mask application. The engine trusts
// this flag and does not verify it.
func (c *Column) Sorted() bool {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	return c.sorted
}

// SetSorted updates the sorted flag.
func (c *Column) SetSorted(v bool) {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	c.sorted = v
}

// IndexHandle returns the reference-counted handle guarding this
// column's in-memory index.
func (c *Column) IndexHandle() *index.Handle { return c.idx }

// RLock/RUnlock and Lock/Unlock expose the per-column data rwlock to
// callers that need to hold it across a sequence of operations (e.g.
// append followed immediately by index rebuild).
func (c *Column) RLock()   { c.dataMu.RLock() }
func (c *Column) RUnlock() { c.dataMu.RUnlock() }
func (c *Column) Lock()    { c.dataMu.Lock() }
func (c *Column) Unlock()  { c.dataMu.Unlock() }
