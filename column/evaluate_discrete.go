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
	"math"
	"sort"

	"github.com/colbit/fastbit/bitvec"
	"github.com/colbit/fastbit/filemgr"
	"github.com/colbit/fastbit/rangeq"
	"github.com/colbit/fastbit/schema"
)

// spanningRange builds a Continuous covering [min(set), max(set)],
// used only to ask the index capability for a cost estimate over the
// discrete set's range.
func spanningRange(set rangeq.Discrete) rangeq.Continuous {
	if len(set.Values) == 0 {
		return rangeq.Continuous{}
	}
	return rangeq.Continuous{
		LowBound: set.Values[0], LowOp: rangeq.GE,
		HighOp: rangeq.LE, HighBound: set.Values[len(set.Values)-1],
	}
}

// EvaluateDiscrete turns a col IN {values} predicate plus a caller
// mask into a hit bitvector of size rows, intersected with (column
// nulls ∩ m).
func (c *Column) EvaluateDiscrete(set rangeq.Discrete, m *bitvec.Bitvector, mgr *filemgr.Manager) (*bitvec.Bitvector, error) {
	if c.partition == nil {
		return bitvec.None(0), newErrCode(CodeNoPartition, Invariant, c.Name, "column is not attached to a partition", nil)
	}
	rows := c.partition.RowCount()
	if len(set.Values) == 0 {
		return bitvec.None(rows), nil
	}

	if c.Type == schema.TEXT {
		return c.evaluateDiscreteText(set, m, mgr)
	}

	if c.Type.IsInteger() {
		if cont, ok := set.AsContinuous(); ok {
			return c.EvaluateContinuous(cont, m, mgr)
		}
	}

	colMask, err := c.Mask()
	if err != nil {
		return nil, err
	}
	eff := bitvec.And(colMask, m)

	hits, err := c.discreteHits(set, mgr)
	if err != nil {
		c.idx.Unload()
		return c.scanDiscreteSet(set, eff, mgr)
	}
	hits.AdjustSize(hits.Size(), rows)
	hits.AndInPlace(eff)
	return hits, nil
}

// evaluateDiscreteText resolves a col IN {ids} predicate for a TEXT
// column by translating every masked row's string through the
// dictionary sidecar and testing membership directly; TEXT's
// dictionary IDs carry no ordering relationship to the underlying
// column, so the index/sorted-merge/roster strategies of §4.9 do not
// apply and a scan-shaped pass over the selection is used instead.
func (c *Column) evaluateDiscreteText(set rangeq.Discrete, m *bitvec.Bitvector, mgr *filemgr.Manager) (*bitvec.Bitvector, error) {
	rows := c.partition.RowCount()
	colMask, err := c.Mask()
	if err != nil {
		return nil, err
	}
	eff := bitvec.And(colMask, m)

	sel, err := c.selectText(eff, mgr)
	if err != nil {
		return nil, err
	}
	member := membershipFn(set)

	out := bitvec.New()
	pos := 0
	for i, row := range sel.Rows {
		out.Set(false, row-pos)
		out.Set(member(sel.Values[i]), 1)
		pos = row + 1
	}
	out.Set(false, rows-pos)
	return out, nil
}

func membershipFn(set rangeq.Discrete) func(float64) bool {
	vals := set.Values
	return func(v float64) bool {
		i := sort.SearchFloat64s(vals, v)
		return i < len(vals) && vals[i] == v
	}
}

// discreteHits implements steps 3-7: pick a strategy by comparing the
// index's estimated cost (amplified by 1+ln k, the per-needle log
// factor) against the alternatives, in the order the evaluator
// prefers them.
func (c *Column) discreteHits(set rangeq.Discrete, mgr *filemgr.Manager) (*bitvec.Bitvector, error) {
	rows := c.partition.RowCount()
	k := len(set.Values)
	spanning := spanningRange(set)

	idx, release := c.idx.Acquire()
	idxCost := math.Inf(1)
	if idx != nil {
		idxCost = idx.EstimateCost(spanning) * (1 + math.Log(float64(k)))
	}
	release()

	if c.Sorted() && idxCost > float64(rows) {
		return c.sortedMerge(set, mgr)
	}

	if idxCost > float64(c.ElementSize()+4)*float64(rows) {
		if sel, err := c.Select(bitvec.All(rows), mgr); err == nil {
			roster := BuildRoster(sel)
			hitRows := roster.LocateMany(set.Values)
			return rowsToBitvector(hitRows, rows), nil
		}
	}

	idx, release = c.idx.Acquire()
	defer release()
	if idx == nil {
		return nil, newErr(IndexFault, c.Name, "no index available for discrete evaluation", nil)
	}
	hits, err := idx.EvaluateDiscrete(set)
	if err == nil {
		if hits.Size() < rows {
			tail, terr := c.scanRangeTail(membershipFn(set), hits.Size(), mgr)
			if terr != nil {
				return nil, terr
			}
			hits.OrInPlace(tail)
		}
		return hits, nil
	}

	lo, hi, eerr := idx.Estimate(spanning)
	if eerr != nil {
		return nil, eerr
	}
	candidate := bitvec.Minus(hi, lo)
	candidate.AdjustSize(candidate.Size(), rows)
	band, serr := c.scanDiscrete(membershipFn(set), candidate, mgr)
	if serr != nil {
		return nil, serr
	}
	lo.AdjustSize(lo.Size(), rows)
	lo.OrInPlace(band)
	return lo, nil
}

// scanRangeTail scans rows [from, rows) for set membership, used when
// an index's exact evaluation comes back short of the full row count.
func (c *Column) scanRangeTail(member func(float64) bool, from int, mgr *filemgr.Manager) (*bitvec.Bitvector, error) {
	rows := c.partition.RowCount()
	tailMask := bitvec.New()
	tailMask.Set(false, from)
	tailMask.Set(true, rows-from)
	return c.scanDiscrete(member, tailMask, mgr)
}

// scanDiscreteSet is the full fallback scan used when every other
// strategy raised an error.
func (c *Column) scanDiscreteSet(set rangeq.Discrete, candidates *bitvec.Bitvector, mgr *filemgr.Manager) (*bitvec.Bitvector, error) {
	return c.scanDiscrete(membershipFn(set), candidates, mgr)
}

func rowsToBitvector(rows []int, n int) *bitvec.Bitvector {
	out := bitvec.New()
	pos := 0
	for _, r := range rows {
		out.Set(false, r-pos)
		out.Set(true, 1)
		pos = r + 1
	}
	out.Set(false, n-pos)
	return out
}
