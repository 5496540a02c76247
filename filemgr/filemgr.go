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

// Package filemgr resolves column data-file paths to shared,
// reference-counted in-memory blocks.
//
// A Manager never hands a path to a caller to mmap directly; it decides
// whether to map the file or read it fully into the heap, and it keeps
// exactly one resident block per path no matter how many readers are
// using it concurrently. The last Release of the last outstanding
// Ref is what actually releases the backing mapping or buffer.
package filemgr

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// Hint selects how a Manager should prefer to materialize a file.
type Hint int

const (
	// MMapLargeFiles maps files above an internal size threshold and
	// reads small files fully into the heap.
	MMapLargeFiles Hint = iota
	// ReadFully always reads the file into a heap-allocated buffer.
	ReadFully
	// MMapAlways always maps the file, regardless of size.
	MMapAlways
)

// smallFileThreshold is the boundary MMapLargeFiles uses to decide
// between mapping and a plain read; small files don't benefit from
// the extra syscalls a mapping requires.
const smallFileThreshold = 1 << 20 // 1 MiB

// ErrNotResident is returned by Manager.TryGetFile when the path is
// not already resident and the caller asked for a non-blocking lookup.
var ErrNotResident = errors.New("filemgr: file is not resident")

// Ref is a shared reference to a resident block of file data.
// The bytes in Bytes are valid until Release is called; callers must
// not retain Bytes past Release.
type Ref struct {
	mgr   *Manager
	block *block
}

// Bytes returns the mapped or buffered contents of the file.
func (r *Ref) Bytes() []byte {
	if r.block == nil {
		return nil
	}
	return r.block.data
}

// Release drops this reference. Once the last outstanding Ref for a
// path is released, the Manager is free to unmap or discard the block.
func (r *Ref) Release() {
	if r.block == nil {
		return
	}
	r.mgr.release(r.block)
	r.block = nil
}

type block struct {
	path     string
	data     []byte
	mapped   bool // true if data came from mmap and must be munmap'd
	f        *os.File
	refcount int
}

// Manager maps column data-file paths to shared in-memory blocks. The
// zero value is ready to use; a single process-wide Manager is typical,
// but tests may construct their own to avoid cross-test interference.
type Manager struct {
	mu       sync.Mutex
	cond     sync.Cond
	blocks   map[string]*block
	inflight map[string]struct{}

	pageSz int

	statsMu     sync.Mutex
	accessedLo  int64
	accessedHi  int64
	haveAccess  bool
}

// New constructs a Manager. Equivalent to new(Manager), provided for
// symmetry with the rest of the package's constructors.
func New() *Manager {
	m := &Manager{
		blocks:   make(map[string]*block),
		inflight: make(map[string]struct{}),
	}
	m.cond.L = &m.mu
	m.pageSz = os.Getpagesize()
	return m
}

func (m *Manager) init() {
	if m.blocks == nil {
		m.blocks = make(map[string]*block)
	}
	if m.inflight == nil {
		m.inflight = make(map[string]struct{})
	}
	if m.cond.L == nil {
		m.cond.L = &m.mu
	}
	if m.pageSz == 0 {
		m.pageSz = os.Getpagesize()
	}
}

// PageSize returns the OS page granularity the Manager uses to reason
// about mapping overhead.
func (m *Manager) PageSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	return m.pageSz
}

// wait until no other goroutine is populating path, then either
// return the existing resident block (with an extra ref) or claim
// the right to populate it ourselves.
func (m *Manager) claim(path string) *block {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	for {
		if b := m.blocks[path]; b != nil {
			b.refcount++
			return b
		}
		if _, busy := m.inflight[path]; !busy {
			m.inflight[path] = struct{}{}
			return nil
		}
		m.cond.Wait()
	}
}

func (m *Manager) publish(path string, b *block) {
	m.mu.Lock()
	delete(m.inflight, path)
	if b != nil {
		m.blocks[path] = b
	}
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *Manager) release(b *block) {
	m.mu.Lock()
	b.refcount--
	dead := b.refcount == 0
	if dead {
		delete(m.blocks, b.path)
	}
	m.mu.Unlock()
	if !dead {
		return
	}
	if b.mapped {
		unmap(b.data)
	}
	if b.f != nil {
		b.f.Close()
	}
}

// GetFile resolves path to a resident block, reading or mapping it
// according to hint if it is not already resident.
func (m *Manager) GetFile(path string, hint Hint) (*Ref, error) {
	if b := m.claim(path); b != nil {
		return &Ref{mgr: m, block: b}, nil
	}
	b, err := m.populate(path, hint)
	m.publish(path, b)
	if err != nil {
		return nil, err
	}
	return &Ref{mgr: m, block: b}, nil
}

// TryGetFile returns a Ref for path only if it is already resident;
// otherwise it returns ErrNotResident without performing any I/O.
func (m *Manager) TryGetFile(path string, hint Hint) (*Ref, error) {
	m.mu.Lock()
	m.init()
	b := m.blocks[path]
	if b != nil {
		b.refcount++
	}
	m.mu.Unlock()
	if b == nil {
		return nil, ErrNotResident
	}
	return &Ref{mgr: m, block: b}, nil
}

// FlushFile invalidates and releases any resident block for path.
// It must be called before a caller rewrites path in place; failing
// to do so risks handing out stale mapped data to other readers.
func (m *Manager) FlushFile(path string) {
	m.mu.Lock()
	b := m.blocks[path]
	delete(m.blocks, path)
	m.mu.Unlock()
	if b == nil {
		return
	}
	// The block is already out of blocks, so new lookups reload the
	// file. With no outstanding refs it is released here; otherwise
	// this does not wait, and the final Release unmaps it.
	if b.refcount == 0 {
		if b.mapped {
			unmap(b.data)
		}
		if b.f != nil {
			b.f.Close()
		}
	}
}

// RecordPages records that the half-open byte range [lo, hi) of some
// file was accessed, for access-pattern statistics. This is a
// best-effort hook; callers are not required to use it.
func (m *Manager) RecordPages(lo, hi int64) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	if !m.haveAccess || lo < m.accessedLo {
		m.accessedLo = lo
	}
	if !m.haveAccess || hi > m.accessedHi {
		m.accessedHi = hi
	}
	m.haveAccess = true
}

// AccessedRange returns the smallest half-open range covering every
// byte range passed to RecordPages so far.
func (m *Manager) AccessedRange() (lo, hi int64, ok bool) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.accessedLo, m.accessedHi, m.haveAccess
}

func (m *Manager) populate(path string, hint Hint) (*block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := info.Size()
	useMmap := hint == MMapAlways || (hint == MMapLargeFiles && size >= smallFileThreshold)
	if useMmap && size > 0 {
		data, err := mmap(f, size)
		if err != nil {
			// fall back to a heap read rather than failing outright;
			// some filesystems (tmpfs over fuse, etc.) refuse mmap.
			data, rerr := readFully(f, size)
			if rerr != nil {
				f.Close()
				return nil, fmt.Errorf("filemgr: mmap %s: %w; read fallback: %s", path, err, rerr)
			}
			f.Close()
			return &block{path: path, data: data, refcount: 1}, nil
		}
		return &block{path: path, data: data, mapped: true, f: f, refcount: 1}, nil
	}
	data, err := readFully(f, size)
	f.Close()
	if err != nil {
		return nil, err
	}
	return &block{path: path, data: data, refcount: 1}, nil
}

func readFully(f *os.File, size int64) ([]byte, error) {
	buf := make([]byte, size)
	if size == 0 {
		return buf, nil
	}
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}
