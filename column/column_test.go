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
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/colbit/fastbit/bitvec"
	"github.com/colbit/fastbit/dict"
	"github.com/colbit/fastbit/filemgr"
	"github.com/colbit/fastbit/rangeq"
	"github.com/colbit/fastbit/schema"
)

func newTestPartition(t *testing.T, rows int) (*Partition, *filemgr.Manager) {
	t.Helper()
	dir := t.TempDir()
	mgr := filemgr.New()
	return NewPartition(dir, rows, mgr), mgr
}

func writeU8Column(t *testing.T, p *Partition, name string, values []byte) *Column {
	t.Helper()
	c := New(name, schema.U8)
	p.AddColumn(c)
	if err := os.WriteFile(c.DataPath(), values, 0644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	return c
}

func writeU32Column(t *testing.T, p *Partition, name string, values []uint32) *Column {
	t.Helper()
	c := New(name, schema.U32)
	p.AddColumn(c)
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	if err := os.WriteFile(c.DataPath(), buf, 0644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	return c
}

func writeF64Column(t *testing.T, p *Partition, name string, values []float64) *Column {
	t.Helper()
	c := New(name, schema.F64)
	p.AddColumn(c)
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	if err := os.WriteFile(c.DataPath(), buf, 0644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	return c
}

// writeTextColumn writes terms as a NUL-delimited data file and builds a
// matching .dic sidecar, interning every distinct term in row order.
func writeTextColumn(t *testing.T, p *Partition, name string, terms []string) *Column {
	t.Helper()
	c := New(name, schema.TEXT)
	p.AddColumn(c)

	var buf []byte
	for _, term := range terms {
		buf = append(buf, term...)
		buf = append(buf, 0)
	}
	if err := os.WriteFile(c.DataPath(), buf, 0644); err != nil {
		t.Fatalf("write text data: %v", err)
	}

	d := dict.New()
	for _, term := range terms {
		d.Intern(term)
	}
	if err := d.Write(c.DictPath()); err != nil {
		t.Fatalf("write dictionary: %v", err)
	}
	return c
}

func bitsOf(b *bitvec.Bitvector) []bool {
	out := make([]bool, b.Size())
	for i := range out {
		out[i] = b.At(i)
	}
	return out
}

// S1: Column U8 with ten 5s, col = 5 / col > 5 / col >= 5.
func TestS1EqualityAndComparison(t *testing.T) {
	p, mgr := newTestPartition(t, 10)
	c := writeU8Column(t, p, "v", []byte{5, 5, 5, 5, 5, 5, 5, 5, 5, 5})

	all := bitvec.All(10)

	eq := rangeq.Continuous{LowOp: rangeq.EQ, LowBound: 5}
	hits, err := c.EvaluateContinuous(eq, all, mgr)
	if err != nil {
		t.Fatalf("col = 5: %v", err)
	}
	if hits.Cnt() != 10 {
		t.Fatalf("col = 5: got %d hits, want 10", hits.Cnt())
	}

	gt := rangeq.Continuous{LowOp: rangeq.GT, LowBound: 5}
	hits, err = c.EvaluateContinuous(gt, all, mgr)
	if err != nil {
		t.Fatalf("col > 5: %v", err)
	}
	if hits.Cnt() != 0 {
		t.Fatalf("col > 5: got %d hits, want 0", hits.Cnt())
	}

	ge := rangeq.Continuous{LowOp: rangeq.GE, LowBound: 5}
	hits, err = c.EvaluateContinuous(ge, all, mgr)
	if err != nil {
		t.Fatalf("col >= 5: %v", err)
	}
	if hits.Cnt() != 10 {
		t.Fatalf("col >= 5: got %d hits, want 10", hits.Cnt())
	}
}

// S2: sorted U32 [1..1000], 300 < col <= 400 -> 100 hits.
func TestS2SortedRangeSearch(t *testing.T) {
	p, mgr := newTestPartition(t, 1000)
	values := make([]uint32, 1000)
	for i := range values {
		values[i] = uint32(i + 1)
	}
	c := writeU32Column(t, p, "v", values)
	c.SetSorted(true)

	rng := rangeq.Continuous{LowOp: rangeq.GT, LowBound: 300, HighOp: rangeq.LE, HighBound: 400}
	hits, err := c.EvaluateContinuous(rng, bitvec.All(1000), mgr)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if hits.Cnt() != 100 {
		t.Fatalf("got %d hits, want 100", hits.Cnt())
	}
	for row := 300; row < 400; row++ {
		if !hits.At(row) {
			t.Fatalf("row %d expected set", row)
		}
	}
	if hits.At(299) || hits.At(400) {
		t.Fatalf("boundary rows 299/400 should be clear")
	}
}

// S3: F64 [1.0, NaN, 2.0, 3.0] mask [1,0,1,1], col < 2.5 -> [1,0,1,0].
func TestS3NullMaskExcludesNaN(t *testing.T) {
	p, mgr := newTestPartition(t, 4)
	c := writeF64Column(t, p, "v", []float64{1.0, math.NaN(), 2.0, 3.0})

	mask := bitvec.New()
	mask.Set(true, 1)
	mask.Set(false, 1)
	mask.Set(true, 2)
	if err := mask.Write(c.MaskPath()); err != nil {
		t.Fatalf("write mask: %v", err)
	}

	rng := rangeq.Continuous{HighOp: rangeq.LT, HighBound: 2.5}
	hits, err := c.EvaluateContinuous(rng, bitvec.All(4), mgr)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	want := []bool{true, false, true, false}
	got := bitsOf(hits)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d: got %v, want %v (full=%v)", i, got[i], want[i], got)
		}
	}
}

// S4: IN {2,3,5,7,11} on sorted [1..12] -> hits at positions 1,2,4,6,10.
func TestS4DiscreteInSetOnSorted(t *testing.T) {
	p, mgr := newTestPartition(t, 12)
	values := make([]uint32, 12)
	for i := range values {
		values[i] = uint32(i + 1)
	}
	c := writeU32Column(t, p, "v", values)
	c.SetSorted(true)

	set := rangeq.NewDiscrete([]float64{2, 3, 5, 7, 11})
	hits, err := c.EvaluateDiscrete(set, bitvec.All(12), mgr)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	wantRows := map[int]bool{1: true, 2: true, 4: true, 6: true, 10: true}
	if hits.Cnt() != len(wantRows) {
		t.Fatalf("got %d hits, want %d", hits.Cnt(), len(wantRows))
	}
	for row := 0; row < 12; row++ {
		if hits.At(row) != wantRows[row] {
			t.Fatalf("row %d: got %v, want %v", row, hits.At(row), wantRows[row])
		}
	}
}

// S5: append 3 rows, source mask 101, onto 2 valid rows (mask 11) ->
// resulting mask 11101 (5 rows, 4 valid); data extended by 3*elemSize.
func TestS5AppendMergesMask(t *testing.T) {
	p, mgr := newTestPartition(t, 2)
	_ = mgr
	c := writeU8Column(t, p, "v", []byte{9, 9})

	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "v"), []byte{1, 2, 3}, 0644); err != nil {
		t.Fatalf("write src data: %v", err)
	}
	srcMask := bitvec.New()
	srcMask.Set(true, 1)
	srcMask.Set(false, 1)
	srcMask.Set(true, 1)
	if err := srcMask.Write(filepath.Join(srcDir, "v.msk")); err != nil {
		t.Fatalf("write src mask: %v", err)
	}

	n, err := c.Append(srcDir, 3)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if n != 3 {
		t.Fatalf("append returned %d, want 3", n)
	}
	p.SetRowCount(5)

	info, err := os.Stat(c.DataPath())
	if err != nil {
		t.Fatalf("stat data: %v", err)
	}
	if info.Size() != 5 {
		t.Fatalf("data file size = %d, want 5", info.Size())
	}

	m, err := bitvec.Read(c.MaskPath())
	if err != nil {
		t.Fatalf("read merged mask: %v", err)
	}
	want := []bool{true, true, true, false, true}
	got := bitsOf(m)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mask bit %d: got %v, want %v (full=%v)", i, got[i], want[i], got)
		}
	}
	if m.Cnt() != 4 {
		t.Fatalf("valid count = %d, want 4", m.Cnt())
	}
}

// S7: range predicate on an OID column is NotApplicable and returns
// an empty hit bitvector.
func TestS7OIDNotApplicable(t *testing.T) {
	p, mgr := newTestPartition(t, 4)
	c := New("id", schema.OID)
	p.AddColumn(c)
	buf := make([]byte, 8*4)
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(i))
	}
	if err := os.WriteFile(c.DataPath(), buf, 0644); err != nil {
		t.Fatalf("write data: %v", err)
	}

	rng := rangeq.Continuous{LowOp: rangeq.GE, LowBound: 0}
	hits, err := c.EvaluateContinuous(rng, bitvec.All(4), mgr)
	if err == nil {
		t.Fatalf("expected NotApplicable error")
	}
	var colErr *Error
	if ok := asColumnError(err, &colErr); !ok || colErr.Kind != NotApplicable {
		t.Fatalf("got error %v, want Kind=NotApplicable", err)
	}
	if hits.Cnt() != 0 {
		t.Fatalf("expected empty hit set, got %d bits set", hits.Cnt())
	}
}

func asColumnError(err error, target **Error) bool {
	ce, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = ce
	return true
}

// Property: select(M).len == (M AND column_mask).cnt.
func TestSelectLengthMatchesEffectiveMaskCount(t *testing.T) {
	p, mgr := newTestPartition(t, 6)
	c := writeU8Column(t, p, "v", []byte{1, 2, 3, 4, 5, 6})

	colMask := bitvec.New()
	colMask.Set(true, 3)
	colMask.Set(false, 1)
	colMask.Set(true, 2)
	if err := colMask.Write(c.MaskPath()); err != nil {
		t.Fatalf("write mask: %v", err)
	}

	caller := bitvec.New()
	caller.Set(false, 1)
	caller.Set(true, 5)

	sel, err := c.Select(caller, mgr)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	eff := bitvec.And(colMask, caller)
	if len(sel.Values) != eff.Cnt() {
		t.Fatalf("select returned %d values, want %d", len(sel.Values), eff.Cnt())
	}
}

// Property: evaluate(P1 AND P2) == evaluate(P1) AND evaluate(P2) for
// two continuous predicates over the same column.
func TestEvaluateConjunctionMatchesIntersection(t *testing.T) {
	p, mgr := newTestPartition(t, 20)
	values := make([]uint32, 20)
	for i := range values {
		values[i] = uint32(i)
	}
	c := writeU32Column(t, p, "v", values)

	p1 := rangeq.Continuous{LowOp: rangeq.GE, LowBound: 5}
	p2 := rangeq.Continuous{HighOp: rangeq.LT, HighBound: 15}

	h1, err := c.EvaluateContinuous(p1, bitvec.All(20), mgr)
	if err != nil {
		t.Fatalf("evaluate p1: %v", err)
	}
	h2, err := c.EvaluateContinuous(p2, bitvec.All(20), mgr)
	if err != nil {
		t.Fatalf("evaluate p2: %v", err)
	}
	want := bitvec.And(h1, h2)

	conj := rangeq.Continuous{LowOp: rangeq.GE, LowBound: 5, HighOp: rangeq.LT, HighBound: 15}
	got, err := c.EvaluateContinuous(conj, bitvec.All(20), mgr)
	if err != nil {
		t.Fatalf("evaluate conjunction: %v", err)
	}
	if got.Cnt() != want.Cnt() {
		t.Fatalf("conjunction cnt = %d, want %d", got.Cnt(), want.Cnt())
	}
	for i := 0; i < 20; i++ {
		if got.At(i) != want.At(i) {
			t.Fatalf("row %d: got %v, want %v", i, got.At(i), want.At(i))
		}
	}
}

// Property: truncate(N) leaves row_count == N and mask.size == N.
func TestTruncateResizesMask(t *testing.T) {
	p, mgr := newTestPartition(t, 6)
	_ = mgr
	c := writeU8Column(t, p, "v", []byte{1, 2, 3, 4, 5, 6})
	mask := bitvec.All(6)
	if err := mask.Write(c.MaskPath()); err != nil {
		t.Fatalf("write mask: %v", err)
	}

	if err := c.Truncate(3); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	p.SetRowCount(3)

	info, err := os.Stat(c.DataPath())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 3 {
		t.Fatalf("data file size = %d, want 3", info.Size())
	}
	m, err := c.Mask()
	if err != nil {
		t.Fatalf("mask: %v", err)
	}
	if m.Size() != 3 {
		t.Fatalf("mask size = %d, want 3", m.Size())
	}
}

// TEXT Select translates each masked row's string to its dictionary ID.
func TestSelectTextTranslatesViaDictionary(t *testing.T) {
	p, mgr := newTestPartition(t, 4)
	terms := []string{"alpha", "beta", "alpha", "gamma"}
	c := writeTextColumn(t, p, "v", terms)

	sel, err := c.Select(bitvec.All(4), mgr)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(sel.Values) != 4 {
		t.Fatalf("got %d values, want 4", len(sel.Values))
	}

	d, err := dict.Read(c.DictPath())
	if err != nil {
		t.Fatalf("read dictionary: %v", err)
	}
	for i, row := range sel.Rows {
		wantID, ok := d.Lookup(terms[row])
		if !ok {
			t.Fatalf("row %d: term %q not in dictionary", row, terms[row])
		}
		if sel.Values[i] != float64(wantID) {
			t.Fatalf("row %d: got id %v, want %v", row, sel.Values[i], wantID)
		}
	}
	// alpha is repeated at rows 0 and 2: both must translate to the same ID.
	if sel.Values[0] != sel.Values[2] {
		t.Fatalf("repeated term alpha: row0=%v row2=%v, want equal", sel.Values[0], sel.Values[2])
	}
}

// TEXT EvaluateDiscrete resolves an IN-set of dictionary IDs against the
// translated column values.
func TestEvaluateDiscreteTextMembership(t *testing.T) {
	p, mgr := newTestPartition(t, 4)
	terms := []string{"alpha", "beta", "alpha", "gamma"}
	c := writeTextColumn(t, p, "v", terms)

	d, err := dict.Read(c.DictPath())
	if err != nil {
		t.Fatalf("read dictionary: %v", err)
	}
	betaID, _ := d.Lookup("beta")
	gammaID, _ := d.Lookup("gamma")

	set := rangeq.NewDiscrete([]float64{float64(betaID), float64(gammaID)})
	hits, err := c.EvaluateDiscrete(set, bitvec.All(4), mgr)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	want := map[int]bool{1: true, 3: true}
	if hits.Cnt() != len(want) {
		t.Fatalf("got %d hits, want %d", hits.Cnt(), len(want))
	}
	for row := 0; row < 4; row++ {
		if hits.At(row) != want[row] {
			t.Fatalf("row %d: got %v, want %v", row, hits.At(row), want[row])
		}
	}
}

// EvaluateContinuous rejects a range predicate with neither endpoint
// defined as an invalid-input error, distinct from a defined-but-empty
// range (which is a legitimate zero-hit result, not an error).
func TestEvaluateContinuousBothUndefinedIsError(t *testing.T) {
	p, mgr := newTestPartition(t, 4)
	c := writeU8Column(t, p, "v", []byte{1, 2, 3, 4})

	_, err := c.EvaluateContinuous(rangeq.Continuous{}, bitvec.All(4), mgr)
	if err == nil {
		t.Fatalf("expected error for a range predicate with neither endpoint defined")
	}
	var colErr *Error
	if ok := asColumnError(err, &colErr); !ok || colErr.Code != CodeBothUndefined {
		t.Fatalf("got error %v, want Code=CodeBothUndefined", err)
	}

	rng := rangeq.Continuous{LowOp: rangeq.GE, LowBound: 10, HighOp: rangeq.LE, HighBound: 0}
	hits, err := c.EvaluateContinuous(rng, bitvec.All(4), mgr)
	if err != nil {
		t.Fatalf("contradictory-but-defined bounds should not error: %v", err)
	}
	if hits.Cnt() != 0 {
		t.Fatalf("contradictory bounds: got %d hits, want 0", hits.Cnt())
	}
}

// §4.10's march strategy (preferred here: k=5 needles over 12 sorted rows)
// must agree with the binary-search strategy's result for the same input
// S4 already exercises via sortedMerge.
func TestPreferMarchAgreesWithBinarySearch(t *testing.T) {
	if !preferMarch(5, 12) {
		t.Fatalf("preferMarch(5, 12) = false, want true (k*(1+log rows) >= k+rows)")
	}
	if preferMarch(1, 1_000_000) {
		t.Fatalf("preferMarch(1, 1_000_000) = true, want false (single needle, huge column)")
	}

	values := make([]float64, 12)
	for i := range values {
		values[i] = float64(i + 1)
	}
	valueAt := func(i int) (float64, error) { return values[i], nil }

	hits, err := marchMerge(valueAt, 12, []float64{2, 3, 5, 7, 11})
	if err != nil {
		t.Fatalf("marchMerge: %v", err)
	}
	want := map[int]bool{1: true, 2: true, 4: true, 6: true, 10: true}
	if hits.Cnt() != len(want) {
		t.Fatalf("got %d hits, want %d", hits.Cnt(), len(want))
	}
	for row := 0; row < 12; row++ {
		if hits.At(row) != want[row] {
			t.Fatalf("row %d: got %v, want %v", row, hits.At(row), want[row])
		}
	}
}
