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

package rangeq

import "testing"

func TestContinuousAdmitsEquality(t *testing.T) {
	c := Continuous{LowBound: 5, LowOp: EQ, HighOp: EQ, HighBound: 5}
	if !c.Admits(5) {
		t.Fatal("expected col = 5 to admit 5")
	}
	if c.Admits(6) {
		t.Fatal("expected col = 5 to reject 6")
	}
}

func TestContinuousAdmitsOpenRange(t *testing.T) {
	// 300 < col <= 400
	c := Continuous{LowBound: 300, LowOp: GT, HighOp: LE, HighBound: 400}
	if c.Admits(300) {
		t.Fatal("300 should be excluded (strict >)")
	}
	if !c.Admits(301) {
		t.Fatal("301 should be admitted")
	}
	if !c.Admits(400) {
		t.Fatal("400 should be admitted (inclusive <=)")
	}
	if c.Admits(401) {
		t.Fatal("401 should be excluded")
	}
}

func TestContinuousEmptyContradiction(t *testing.T) {
	c := Continuous{LowBound: 10, LowOp: GT, HighOp: LT, HighBound: 5}
	if !c.Empty() {
		t.Fatal("expected a contradictory range to be Empty")
	}
}

func TestContinuousUnboundedIsNotEmpty(t *testing.T) {
	c := Continuous{LowOp: GT, LowBound: 5}
	if c.Empty() {
		t.Fatal("a one-sided range should not be Empty")
	}
	if !c.Admits(6) || c.Admits(5) {
		t.Fatal("one-sided range admits the wrong set")
	}
}

func TestNewDiscreteSortsAndDedupes(t *testing.T) {
	d := NewDiscrete([]float64{5, 3, 3, 7, 2, 2, 2})
	want := []float64{2, 3, 5, 7}
	if len(d.Values) != len(want) {
		t.Fatalf("got %v, want %v", d.Values, want)
	}
	for i := range want {
		if d.Values[i] != want[i] {
			t.Fatalf("got %v, want %v", d.Values, want)
		}
	}
}

func TestDiscreteIsDenseRange(t *testing.T) {
	d := NewDiscrete([]float64{2, 3, 5, 7, 11})
	if _, _, ok := d.IsDenseRange(); ok {
		t.Fatal("{2,3,5,7,11} should not be reported as a dense range")
	}

	dense := NewDiscrete([]float64{4, 5, 6, 7})
	lo, hi, ok := dense.IsDenseRange()
	if !ok || lo != 4 || hi != 7 {
		t.Fatalf("IsDenseRange() = (%v, %v, %v), want (4, 7, true)", lo, hi, ok)
	}
	c, ok := dense.AsContinuous()
	if !ok {
		t.Fatal("expected AsContinuous to succeed for a dense range")
	}
	if !c.Admits(4) || !c.Admits(7) || c.Admits(3) || c.Admits(8) {
		t.Fatal("rewritten continuous range admits the wrong set")
	}
}
