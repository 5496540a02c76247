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

import (
	"path/filepath"
	"testing"
)

func bitsOf(b *Bitvector) []bool {
	out := make([]bool, b.Size())
	for i := range out {
		out[i] = b.At(i)
	}
	return out
}

func fromBools(bits []bool) *Bitvector {
	b := New()
	for _, v := range bits {
		b.Set(v, 1)
	}
	return b
}

func eqBools(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSetAndAt(t *testing.T) {
	b := New()
	b.Set(true, 5)
	b.Set(false, 3)
	b.Set(true, 2)
	if b.Size() != 10 {
		t.Fatalf("size = %d, want 10", b.Size())
	}
	if b.Cnt() != 7 {
		t.Fatalf("cnt = %d, want 7", b.Cnt())
	}
	want := []bool{true, true, true, true, true, false, false, false, true, true}
	if got := bitsOf(b); !eqBools(got, want) {
		t.Fatalf("bits = %v, want %v", got, want)
	}
}

func TestCoalescesAdjacentRuns(t *testing.T) {
	b := New()
	b.Set(true, 3)
	b.Set(true, 4)
	if len(b.runs) != 1 {
		t.Fatalf("expected adjacent same-value runs to coalesce, got %d runs", len(b.runs))
	}
	if b.Size() != 7 || b.Cnt() != 7 {
		t.Fatalf("size/cnt = %d/%d, want 7/7", b.Size(), b.Cnt())
	}
}

func TestAnd(t *testing.T) {
	a := fromBools([]bool{true, true, false, true, false})
	b := fromBools([]bool{true, false, false, true, true})
	got := bitsOf(And(a, b))
	want := []bool{true, false, false, true, false}
	if !eqBools(got, want) {
		t.Fatalf("And = %v, want %v", got, want)
	}
}

func TestOr(t *testing.T) {
	a := fromBools([]bool{true, false, false, false})
	b := fromBools([]bool{false, false, true, false})
	got := bitsOf(Or(a, b))
	want := []bool{true, false, true, false}
	if !eqBools(got, want) {
		t.Fatalf("Or = %v, want %v", got, want)
	}
}

func TestMinus(t *testing.T) {
	a := fromBools([]bool{true, true, true, false})
	b := fromBools([]bool{true, false, true, false})
	got := bitsOf(Minus(a, b))
	want := []bool{false, true, false, false}
	if !eqBools(got, want) {
		t.Fatalf("Minus = %v, want %v", got, want)
	}
}

// TestCombineUnequalLength exercises the short-operand-as-zero-padded
// rule combine relies on when an index or scan result comes back
// shorter than the full row count.
func TestCombineUnequalLength(t *testing.T) {
	a := fromBools([]bool{true, true, true, true, true})
	b := fromBools([]bool{true, true})
	got := bitsOf(And(a, b))
	want := []bool{true, true, false, false, false}
	if !eqBools(got, want) {
		t.Fatalf("And(unequal) = %v, want %v", got, want)
	}
	got = bitsOf(Or(a, b))
	want = []bool{true, true, true, true, true}
	if !eqBools(got, want) {
		t.Fatalf("Or(unequal) = %v, want %v", got, want)
	}
}

func TestSubset(t *testing.T) {
	data := fromBools([]bool{true, false, true, true, false, true})
	selector := fromBools([]bool{true, false, true, false, true, true})
	got := bitsOf(data.Subset(selector))
	want := []bool{true, true, false, true}
	if !eqBools(got, want) {
		t.Fatalf("Subset = %v, want %v", got, want)
	}
}

// TestAdjustSizeLaw checks the reconciliation invariant: AdjustSize
// preserves the first min(active, old size) bits and zero-fills the
// remainder up to total.
func TestAdjustSizeLaw(t *testing.T) {
	cases := []struct {
		name       string
		initial    []bool
		active     int
		total      int
		want       []bool
	}{
		{
			name:    "grow beyond active",
			initial: []bool{true, true, true, true},
			active:  2,
			total:   6,
			want:    []bool{true, true, false, false, false, false},
		},
		{
			name:    "active beyond old size clamps to old size",
			initial: []bool{true, false, true},
			active:  10,
			total:   5,
			want:    []bool{true, false, true, false, false},
		},
		{
			name:    "shrink below active",
			initial: []bool{true, true, true, true},
			active:  4,
			total:   2,
			want:    []bool{true, true},
		},
		{
			name:    "active is zero",
			initial: []bool{true, true},
			active:  0,
			total:   3,
			want:    []bool{false, false, false},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := fromBools(c.initial)
			b.AdjustSize(c.active, c.total)
			if got := bitsOf(b); !eqBools(got, c.want) {
				t.Fatalf("AdjustSize(%d, %d) = %v, want %v", c.active, c.total, got, c.want)
			}
			if b.Size() != c.total {
				t.Fatalf("size = %d, want %d", b.Size(), c.total)
			}
		})
	}
}

func TestAllNone(t *testing.T) {
	a := All(4)
	if a.Cnt() != 4 || a.Size() != 4 {
		t.Fatalf("All(4): size=%d cnt=%d", a.Size(), a.Cnt())
	}
	n := None(4)
	if n.Cnt() != 0 || n.Size() != 4 {
		t.Fatalf("None(4): size=%d cnt=%d", n.Size(), n.Cnt())
	}
}

func TestFirstIndexSetOrder(t *testing.T) {
	b := fromBools([]bool{true, true, false, true, false, false, true, true, true})
	var all []int
	it := b.FirstIndexSet()
	for {
		set, ok := it.Next()
		if !ok {
			break
		}
		set.Each(func(i int) { all = append(all, i) })
	}
	want := []int{0, 1, 3, 6, 7, 8}
	if len(all) != len(want) {
		t.Fatalf("got %v, want %v", all, want)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Fatalf("got %v, want %v", all, want)
		}
		if i > 0 && all[i] <= all[i-1] {
			t.Fatalf("indices not strictly increasing: %v", all)
		}
	}
}

func TestFirstIndexSetLongRunIsRange(t *testing.T) {
	b := New()
	b.Set(false, 2)
	b.Set(true, 100)
	it := b.FirstIndexSet()
	set, ok := it.Next()
	if !ok {
		t.Fatal("expected one IndexSet")
	}
	if set.IsSparse() {
		t.Fatal("expected a long run to be reported as a Range, not Sparse")
	}
	if set.Range.Start != 2 || set.Range.End != 102 {
		t.Fatalf("range = %+v, want [2, 102)", set.Range)
	}
	if _, ok := it.Next(); ok {
		t.Fatal("expected iteration to end after the only run")
	}
}

// TestWriteReadRoundTrip exercises the mask round trip: write_mask(m);
// read_mask() == m.
func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "col.msk")

	b := New()
	b.Set(true, 500)
	b.Set(false, 37)
	b.Set(true, 1)
	b.Set(false, 1000)

	if err := b.Write(path); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Size() != b.Size() || got.Cnt() != b.Cnt() {
		t.Fatalf("round trip mismatch: size %d/%d cnt %d/%d", got.Size(), b.Size(), got.Cnt(), b.Cnt())
	}
	if !eqBools(bitsOf(got), bitsOf(b)) {
		t.Fatal("round trip changed bit contents")
	}
}

func TestCopyIsIndependent(t *testing.T) {
	a := fromBools([]bool{true, false, true})
	c := a.Copy()
	c.Set(true, 1)
	if a.Size() == c.Size() {
		t.Fatal("expected Copy to be independent of the original")
	}
}
