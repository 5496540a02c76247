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
	"sort"

	"github.com/colbit/fastbit/heap"
)

// rosterEntry pairs a value with the absolute row it came from.
type rosterEntry struct {
	value float64
	row   int
}

// Roster is a persistent sorted-value permutation of a column's rows,
// used to locate membership for an IN-set predicate when the column's
// own data file is not itself sorted.
type Roster struct {
	entries []rosterEntry
}

func rosterLess(a, b rosterEntry) bool {
	if a.value != b.value {
		return a.value < b.value
	}
	return a.row < b.row
}

// BuildRoster constructs a Roster over sel's (value, row) pairs. The
// ordering is produced by heapsort over the shared generic heap
// package rather than sort.Slice, draining the heap from smallest to
// largest.
func BuildRoster(sel *Selection) *Roster {
	entries := make([]rosterEntry, len(sel.Values))
	for i := range sel.Values {
		entries[i] = rosterEntry{value: sel.Values[i], row: sel.Rows[i]}
	}
	heap.OrderSlice(entries, rosterLess)
	out := make([]rosterEntry, 0, len(entries))
	for len(entries) > 0 {
		out = append(out, heap.PopSlice(&entries, rosterLess))
	}
	return &Roster{entries: out}
}

// Locate returns every row whose value equals v, in ascending row
// order.
func (r *Roster) Locate(v float64) []int {
	lo := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].value >= v })
	hi := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].value > v })
	if lo >= hi {
		return nil
	}
	rows := make([]int, hi-lo)
	for i := lo; i < hi; i++ {
		rows[i-lo] = r.entries[i].row
	}
	sort.Ints(rows)
	return rows
}

// LocateMany merges the row lists for every value in vs (assumed
// sorted ascending) into one globally ascending row-index stream,
// using a min-heap k-way merge across the per-value candidate lists.
func (r *Roster) LocateMany(vs []float64) []int {
	type cursor struct {
		rows []int
		pos  int
	}
	cursors := make([]*cursor, 0, len(vs))
	for _, v := range vs {
		rows := r.Locate(v)
		if len(rows) > 0 {
			cursors = append(cursors, &cursor{rows: rows})
		}
	}
	less := func(a, b *cursor) bool { return a.rows[a.pos] < b.rows[b.pos] }
	heap.OrderSlice(cursors, less)

	var out []int
	for len(cursors) > 0 {
		top := heap.PopSlice(&cursors, less)
		out = append(out, top.rows[top.pos])
		top.pos++
		if top.pos < len(top.rows) {
			heap.PushSlice(&cursors, top, less)
		}
	}
	return out
}
