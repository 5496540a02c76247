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
	"github.com/colbit/fastbit/bitvec"
	"github.com/colbit/fastbit/filemgr"
	"github.com/colbit/fastbit/rangeq"
	"github.com/colbit/fastbit/schema"
)

// EvaluateContinuous turns a continuous range predicate plus a caller
// mask into a hit bitvector of size rows, intersected with (column
// nulls ∩ m). Any exception along the index-estimate path drops the
// index and retries with a scan over the effective mask alone.
func (c *Column) EvaluateContinuous(rng rangeq.Continuous, m *bitvec.Bitvector, mgr *filemgr.Manager) (*bitvec.Bitvector, error) {
	if c.partition == nil {
		return bitvec.None(0), newErrCode(CodeNoPartition, Invariant, c.Name, "column is not attached to a partition", nil)
	}
	if c.Type == schema.OID || c.Type == schema.TEXT {
		return bitvec.None(c.partition.RowCount()), newErr(NotApplicable, c.Name, "range predicates do not apply to this type", nil)
	}
	if !rng.HasLow() && !rng.HasHigh() {
		return bitvec.None(c.partition.RowCount()), newErrCode(CodeBothUndefined, Invariant, c.Name, "range predicate has neither endpoint defined", nil)
	}
	if rng.Empty() {
		return bitvec.None(c.partition.RowCount()), nil
	}

	colMask, err := c.Mask()
	if err != nil {
		return nil, err
	}
	eff := bitvec.And(colMask, m)
	rows := c.partition.RowCount()

	low, high, err := c.estimateOrSearch(rng, mgr)
	if err != nil {
		c.idx.Unload()
		return c.scanRange(rng, eff, mgr)
	}

	low.AdjustSize(low.Size(), rows)
	high.AdjustSize(high.Size(), rows)

	low.AndInPlace(eff)
	residual := bitvec.Minus(bitvec.And(high, eff), low)

	if residual.Cnt() > 0 {
		hits, err := c.scanRange(rng, residual, mgr)
		if err != nil {
			c.idx.Unload()
			return c.scanRange(rng, eff, mgr)
		}
		low.OrInPlace(hits)
	}
	return low, nil
}

// estimateOrSearch implements step 3: prefer a cheap index estimate,
// fall back to an exact sorted search when the column is declared
// sorted, otherwise report no certain hits and every row as a
// possible hit (the caller's scan over the effective mask does all
// the work).
func (c *Column) estimateOrSearch(rng rangeq.Continuous, mgr *filemgr.Manager) (low, high *bitvec.Bitvector, err error) {
	rows := c.partition.RowCount()

	idx, release := c.idx.Acquire()
	useIndex := idx != nil && idx.EstimateCost(rng) < 0.5*float64(rows)
	if useIndex {
		lo, hi, eerr := idx.Estimate(rng)
		release()
		if eerr != nil {
			return nil, nil, eerr
		}
		if hi.Cnt() == 0 {
			hi = lo
		}
		return lo, hi, nil
	}
	release()

	if c.Sorted() {
		exact, serr := c.sortedSearch(rng, mgr)
		if serr != nil {
			return nil, nil, serr
		}
		return exact, exact, nil
	}
	// No index and no sort guarantee: nothing is certain and nothing
	// can be ruled out, so the whole column becomes the residual band
	// the caller scans.
	return bitvec.None(rows), bitvec.All(rows), nil
}

// sortedSearch dispatches to the in-memory or out-of-core variant
// based on row count.
func (c *Column) sortedSearch(rng rangeq.Continuous, mgr *filemgr.Manager) (*bitvec.Bitvector, error) {
	if c.partition.RowCount() <= sortedSearchThreshold {
		return c.sortedSearchInMemory(rng, mgr)
	}
	if ref, err := mgr.TryGetFile(c.DataPath(), filemgr.MMapLargeFiles); err == nil {
		ref.Release()
		return c.sortedSearchInMemory(rng, mgr)
	}
	return c.sortedSearchOutOfCore(rng)
}
