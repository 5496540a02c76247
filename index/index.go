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

// Package index defines the capability contract the predicate
// evaluator consumes and a reference-counted handle for sharing one
// index instance across concurrent readers.
//
// The actual bitmap-index encoding is out of scope here; Index is a
// boundary interface any encoding can implement.
package index

import (
	"sync"
	"sync/atomic"

	"github.com/colbit/fastbit/bitvec"
	"github.com/colbit/fastbit/rangeq"
)

// Index is the capability surface the evaluator relies on. An
// implementation encodes a per-column bitmap index (e.g. binned
// equality or range encodings); this package does not provide one.
type Index interface {
	// Name identifies the index encoding, e.g. for diagnostics.
	Name() string
	// NRows reports how many rows this index instance covers.
	NRows() int

	// EstimateCost estimates the cost of evaluating rng against this
	// index, in units comparable to "bytes read if scanned".
	EstimateCost(rng rangeq.Continuous) float64
	// Estimate reports a certain-hit set lo and a possible-hit
	// superset hi (lo subset hi). Both are sized to NRows() or less.
	Estimate(rng rangeq.Continuous) (lo, hi *bitvec.Bitvector, err error)
	// Evaluate computes the exact hit set when feasible. A non-nil
	// error signals the caller should fall back to Estimate+scan.
	Evaluate(rng rangeq.Continuous) (*bitvec.Bitvector, error)
	// EvaluateDiscrete computes the exact hit set for an IN-set
	// predicate when feasible.
	EvaluateDiscrete(set rangeq.Discrete) (*bitvec.Bitvector, error)

	// ExpandRange and ContractRange snap rng's endpoints outward or
	// inward to the index's bin boundaries.
	ExpandRange(rng rangeq.Continuous) rangeq.Continuous
	ContractRange(rng rangeq.Continuous) rangeq.Continuous

	// BinBoundaries and BinWeights expose the index's binning scheme.
	BinBoundaries() []float64
	BinWeights() []int64

	GetMin() float64
	GetMax() float64
	GetSum() float64

	// Undecidable reports the fraction of rows (0..1) this index
	// cannot classify for rng, with iffy holding their positions.
	Undecidable(rng rangeq.Continuous) (frac float32, iffy *bitvec.Bitvector)

	// Append extends the index in place to cover nnew additional rows
	// sourced from srcDir, given the destination directory dstDir.
	Append(dstDir, srcDir string, nnew int) error
	// Write persists the index under dir.
	Write(dir string) error
}

// Handle is a reference-counted, RW-lock-guarded holder for at most
// one materialized Index. It implements the concurrency contract: a
// reader increments idxcnt, takes the RW lock for reading, uses the
// index, then releases both; a writer takes the RW lock exclusively
// and waits for idxcnt to reach zero before swapping or dropping the
// index.
type Handle struct {
	mu     sync.RWMutex
	idx    Index
	idxcnt int32
	zero   sync.Cond
	zmu    sync.Mutex
}

// NewHandle returns an empty Handle.
func NewHandle() *Handle {
	h := &Handle{}
	h.zero.L = &h.zmu
	return h
}

// Acquire pins the current index (if any) for reading and returns it
// along with a release function the caller must invoke exactly once.
// If no index is loaded, Acquire returns a nil Index; the release
// function must still be invoked.
func (h *Handle) Acquire() (Index, func()) {
	atomic.AddInt32(&h.idxcnt, 1)
	h.mu.RLock()
	idx := h.idx
	return idx, func() {
		h.mu.RUnlock()
		if atomic.AddInt32(&h.idxcnt, -1) == 0 {
			h.zmu.Lock()
			h.zero.Broadcast()
			h.zmu.Unlock()
		}
	}
}

// Swap installs idx as the current index, waiting for all outstanding
// readers to release the previous one first. Passing nil unloads the
// index without installing a replacement.
func (h *Handle) Swap(idx Index) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.zmu.Lock()
	for atomic.LoadInt32(&h.idxcnt) != 0 {
		h.zero.Wait()
	}
	h.zmu.Unlock()
	h.idx = idx
}

// Unload drops the current index, if any. Equivalent to Swap(nil).
func (h *Handle) Unload() {
	h.Swap(nil)
}

// Loaded reports whether an index is currently installed, without
// pinning it for use.
func (h *Handle) Loaded() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idx != nil
}

// MutateLocked waits for outstanding readers to drain, takes the
// handle exclusively, and calls fn with the currently installed index
// (nil if none). It is used for in-place mutation (e.g. append) where
// no new Index value is being swapped in, only the existing one
// extended.
func (h *Handle) MutateLocked(fn func(Index) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.zmu.Lock()
	for atomic.LoadInt32(&h.idxcnt) != 0 {
		h.zero.Wait()
	}
	h.zmu.Unlock()
	return fn(h.idx)
}
