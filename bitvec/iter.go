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

package bitvec

import "github.com/colbit/fastbit/ints"

// sparseFanout bounds how large a run of set bits can be before the
// iterator reports it as a Range instead of an explicit Sparse list.
// Short runs are common at the boundaries of an AND/OR result, and
// listing their indices directly saves the caller from re-deriving
// them from a one-or-two-bit range.
const sparseFanout = 8

// IndexSet is one step of Bitvector iteration: either a dense range
// of consecutive set bits, or an explicit ascending list of set
// indices no longer than sparseFanout.
type IndexSet struct {
	Range    ints.Interval
	Sparse   []int
	isSparse bool
}

// IsSparse reports whether this IndexSet carries an explicit index
// list rather than a range.
func (s IndexSet) IsSparse() bool { return s.isSparse }

// Each calls fn once for every index in this IndexSet, in ascending
// order.
func (s IndexSet) Each(fn func(int)) {
	if s.isSparse {
		for _, i := range s.Sparse {
			fn(i)
		}
		return
	}
	s.Range.Each(fn)
}

// Iter walks a Bitvector's set bits as a lazy sequence of IndexSets.
// Each call to Next reports indices strictly greater than every index
// reported by a previous call.
type Iter struct {
	runs []run
	pos  int
}

// FirstIndexSet returns an iterator positioned before the first set
// bit of b.
func (b *Bitvector) FirstIndexSet() *Iter {
	return &Iter{runs: b.runs}
}

// Next returns the next IndexSet, or ok=false when iteration is done.
func (it *Iter) Next() (IndexSet, bool) {
	for len(it.runs) > 0 && !it.runs[0].bit {
		it.pos += it.runs[0].n
		it.runs = it.runs[1:]
	}
	if len(it.runs) == 0 {
		return IndexSet{}, false
	}
	r := it.runs[0]
	start := it.pos
	it.pos += r.n
	it.runs = it.runs[1:]
	if r.n <= sparseFanout {
		idx := make([]int, r.n)
		for i := range idx {
			idx[i] = start + i
		}
		return IndexSet{Sparse: idx, isSparse: true}, true
	}
	return IndexSet{Range: ints.Interval{Start: start, End: start + r.n}}, true
}
