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

// Package rangeq defines the predicate value types the evaluator
// consumes: continuous ranges of the form "a op1 col op2 b" and
// discrete IN-sets.
package rangeq

import "sort"

// Op is a comparison operator. Undefined marks an endpoint that was
// not supplied (e.g. a one-sided range).
type Op int

const (
	Undefined Op = iota
	LT
	LE
	GT
	GE
	EQ
)

func (o Op) String() string {
	switch o {
	case LT:
		return "<"
	case LE:
		return "<="
	case GT:
		return ">"
	case GE:
		return ">="
	case EQ:
		return "="
	default:
		return "undefined"
	}
}

// Continuous is a range predicate over a single column:
//
//	LowBound LowOp col HighOp HighBound
//
// e.g. "300 < col <= 400" is {LowBound: 300, LowOp: GT, HighOp: LE,
// HighBound: 400}. Either side may be Undefined, meaning unbounded on
// that side.
type Continuous struct {
	LowBound  float64
	LowOp     Op
	HighOp    Op
	HighBound float64
}

// HasLow reports whether the low side constrains anything.
func (c Continuous) HasLow() bool { return c.LowOp != Undefined }

// HasHigh reports whether the high side constrains anything.
func (c Continuous) HasHigh() bool { return c.HighOp != Undefined }

// Empty reports whether c can be statically determined to admit no
// values at all, e.g. both sides undefined, or a contradictory pair
// like "5 < col" and "col < 5" on the same value.
func (c Continuous) Empty() bool {
	if !c.HasLow() && !c.HasHigh() {
		return true
	}
	if !c.HasLow() || !c.HasHigh() {
		return false
	}
	if c.LowBound > c.HighBound {
		return true
	}
	if c.LowBound == c.HighBound {
		// equal bounds only admit values when both sides are
		// inclusive (>= or ==, <= or ==), i.e. effectively col == bound.
		return !((c.LowOp == GE || c.LowOp == EQ) && (c.HighOp == LE || c.HighOp == EQ))
	}
	return false
}

// Admits reports whether v satisfies c.
func (c Continuous) Admits(v float64) bool {
	if c.HasLow() {
		switch c.LowOp {
		case GT:
			if !(v > c.LowBound) {
				return false
			}
		case GE:
			if !(v >= c.LowBound) {
				return false
			}
		case EQ:
			if v != c.LowBound {
				return false
			}
		}
	}
	if c.HasHigh() {
		switch c.HighOp {
		case LT:
			if !(v < c.HighBound) {
				return false
			}
		case LE:
			if !(v <= c.HighBound) {
				return false
			}
		case EQ:
			if v != c.HighBound {
				return false
			}
		}
	}
	return true
}

// Discrete is a col IN {values} predicate. Values must be sorted
// ascending and distinct; NewDiscrete enforces this.
type Discrete struct {
	Values []float64
}

// NewDiscrete sorts and deduplicates values and returns a Discrete
// over the result.
func NewDiscrete(values []float64) Discrete {
	v := append([]float64(nil), values...)
	sort.Float64s(v)
	out := v[:0]
	for i, x := range v {
		if i == 0 || x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return Discrete{Values: out}
}

// IsDenseRange reports whether the set is a contiguous run of
// integers (max-min+1 == len(Values)), in which case it may be
// rewritten as a Continuous range.
func (d Discrete) IsDenseRange() (lo, hi float64, ok bool) {
	k := len(d.Values)
	if k == 0 {
		return 0, 0, false
	}
	lo, hi = d.Values[0], d.Values[k-1]
	if hi-lo+1 != float64(k) {
		return 0, 0, false
	}
	for i, v := range d.Values {
		if v != lo+float64(i) {
			return 0, 0, false
		}
	}
	return lo, hi, true
}

// AsContinuous rewrites a dense Discrete as an inclusive Continuous
// range.
func (d Discrete) AsContinuous() (Continuous, bool) {
	lo, hi, ok := d.IsDenseRange()
	if !ok {
		return Continuous{}, false
	}
	return Continuous{LowBound: lo, LowOp: GE, HighOp: LE, HighBound: hi}, true
}
