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

// Package column implements the per-column engine: schema, typed
// storage, null-mask reconciliation, append/truncate, statistics, and
// the range/IN-set predicate evaluator.
package column

import (
	"sync"

	"github.com/google/uuid"

	"github.com/colbit/fastbit/filemgr"
)

// State reflects whether a partition's row count and on-disk files
// are known to be mutually consistent.
type State int

const (
	// Loading means the partition's files may still be in flux (e.g.
	// mid-append); mask reconciliation should not persist corrections.
	Loading State = iota
	// Stable means row counts and file lengths have been reconciled;
	// mask reconciliation may persist a corrected mask back to disk.
	Stable
)

// Partition is a horizontal slice of a table: a row count, a data
// directory, and the set of columns defined over it. Columns hold a
// non-owning back-reference to their Partition.
type Partition struct {
	mu    sync.Mutex
	ID    uuid.UUID
	Dir   string
	Rows  int
	State State

	files   *filemgr.Manager
	columns map[string]*Column
}

// NewPartition returns an empty Partition rooted at dir, using mgr to
// resolve column data files. If mgr is nil, a private Manager is
// created. Each Partition is assigned a random ID that tells
// otherwise identical partitions apart; errors do not carry it.
func NewPartition(dir string, rows int, mgr *filemgr.Manager) *Partition {
	if mgr == nil {
		mgr = filemgr.New()
	}
	return &Partition{
		ID:      uuid.New(),
		Dir:     dir,
		Rows:    rows,
		State:   Loading,
		files:   mgr,
		columns: make(map[string]*Column),
	}
}

// AddColumn registers c under this partition, setting c's back
// reference. It replaces any existing column of the same name.
func (p *Partition) AddColumn(c *Column) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c.partition = p
	p.columns[c.Name] = c
}

// Column returns the named column, or nil if it is not registered.
func (p *Partition) Column(name string) *Column {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.columns[name]
}

// Columns returns a snapshot of all registered columns.
func (p *Partition) Columns() []*Column {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Column, 0, len(p.columns))
	for _, c := range p.columns {
		out = append(out, c)
	}
	return out
}

// RowCount returns the partition's current row count.
func (p *Partition) RowCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Rows
}

// SetRowCount updates the partition's row count, e.g. after an append
// or truncate has been applied to every column.
func (p *Partition) SetRowCount(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Rows = n
}
