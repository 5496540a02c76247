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
	"os"

	"github.com/colbit/fastbit/bitvec"
	"github.com/colbit/fastbit/filemgr"
	"github.com/colbit/fastbit/rangeq"
	"github.com/colbit/fastbit/schema"
)

// sortedSearchThreshold bounds when the in-memory binary search path
// is attempted (data resident via mmap-or-nothing) before falling
// back to the out-of-core probe-by-seek variant.
const sortedSearchThreshold = 2_000

// sortedFrontiers resolves rng's two endpoints to a half-open [lo,
// hi) row range, given find (lower bound of a value) and findUpper
// (strict upper bound) primitives over a type-erased ascending view.
//
// Tie-break rules mirror the source algorithm: an inclusive/exclusive
// low bound picks find or findUpper accordingly, likewise for the
// high bound; an equality probe on either side collapses the range to
// the tie-run for that single value.
func sortedFrontiers(rng rangeq.Continuous, find, findUpper func(float64) int, n int) (lo, hi int) {
	lo, hi = 0, n
	if rng.HasLow() {
		switch rng.LowOp {
		case rangeq.GT:
			lo = findUpper(rng.LowBound)
		case rangeq.GE:
			lo = find(rng.LowBound)
		case rangeq.EQ:
			lo = find(rng.LowBound)
			hi = findUpper(rng.LowBound)
			return
		}
	}
	if rng.HasHigh() {
		switch rng.HighOp {
		case rangeq.LT:
			hi = find(rng.HighBound)
		case rangeq.LE:
			hi = findUpper(rng.HighBound)
		case rangeq.EQ:
			lo = find(rng.HighBound)
			hi = findUpper(rng.HighBound)
		}
	}
	if hi < lo {
		hi = lo
	}
	return
}

// sortedSearchInMemory loads the whole data file through mgr (reading
// it fully if it is not already resident) and performs binary search
// directly over the typed view.
func (c *Column) sortedSearchInMemory(rng rangeq.Continuous, mgr *filemgr.Manager) (*bitvec.Bitvector, error) {
	rows := c.partition.RowCount()
	ref, err := mgr.GetFile(c.DataPath(), filemgr.ReadFully)
	if err != nil {
		return nil, newErr(IO, c.Name, "open data file for sorted search", err)
	}
	defer ref.Release()
	data := ref.Bytes()

	typ := c.Type
	find := func(v float64) int { return binarySearchLower(typ, data, rows, v) }
	findUpper := func(v float64) int { return binarySearchUpper(typ, data, rows, v) }
	lo, hi := sortedFrontiers(rng, find, findUpper, rows)

	out := bitvec.New()
	out.Set(false, lo)
	out.Set(true, hi-lo)
	out.Set(false, rows-hi)
	return out, nil
}

// sortedSearchOutOfCore performs the same paired binary search but
// reads one element at a time directly from the file, for data sets
// too large to materialize.
func (c *Column) sortedSearchOutOfCore(rng rangeq.Continuous) (*bitvec.Bitvector, error) {
	rows := c.partition.RowCount()
	f, err := os.Open(c.DataPath())
	if err != nil {
		return nil, newErr(IO, c.Name, "open data file for out-of-core search", err)
	}
	defer f.Close()
	sz := c.ElementSize()
	buf := make([]byte, sz)

	at := func(i int) (float64, error) {
		if _, err := f.ReadAt(buf, int64(i)*int64(sz)); err != nil {
			return 0, err
		}
		return decodeAt(c.Type, buf, 0)
	}

	var probeErr error
	find := func(v float64) int {
		lo, hi := 0, rows
		for lo < hi {
			mid := int(uint(lo+hi) >> 1)
			x, err := at(mid)
			if err != nil {
				probeErr = err
				return lo
			}
			if x < v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		return lo
	}
	findUpper := func(v float64) int {
		lo, hi := 0, rows
		for lo < hi {
			mid := int(uint(lo+hi) >> 1)
			x, err := at(mid)
			if err != nil {
				probeErr = err
				return lo
			}
			if x <= v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		return lo
	}

	loIdx, hiIdx := sortedFrontiers(rng, find, findUpper, rows)
	if probeErr != nil {
		return nil, newErr(IO, c.Name, "out-of-core probe", probeErr)
	}

	out := bitvec.New()
	out.Set(false, loIdx)
	out.Set(true, hiIdx-loIdx)
	out.Set(false, rows-hiIdx)
	return out, nil
}

// preferMarch implements section 4.10's cost comparison between the
// two merge strategies: march if k·(1+log rows) ≥ k+rows (i.e. the
// total cost of k binary searches would exceed one linear pass over
// the column), otherwise the k-binary-search path.
func preferMarch(k, rows int) bool {
	if rows == 0 {
		return false
	}
	return float64(k)*(1+math.Log(float64(rows))) >= float64(k+rows)
}

// marchMerge is the "march" strategy of section 4.10: a single linear
// sweep of the column advancing a value cursor and a needle cursor
// (over the ascending, distinct set.Values) together, so each column
// value is inspected once regardless of k.
func marchMerge(valueAt func(int) (float64, error), rows int, needles []float64) (*bitvec.Bitvector, error) {
	out := bitvec.New()
	pos := 0
	j := 0
	for i := 0; i < rows; i++ {
		v, err := valueAt(i)
		if err != nil {
			return nil, err
		}
		for j < len(needles) && needles[j] < v {
			j++
		}
		hit := j < len(needles) && needles[j] == v
		out.Set(false, i-pos)
		out.Set(hit, 1)
		pos = i + 1
	}
	out.Set(false, rows-pos)
	return out, nil
}

// sortedMerge implements the sorted-column branch of the discrete
// evaluator (section 4.10), picking whichever of the two strategies
// preferMarch says is cheaper for this k and rows.
func (c *Column) sortedMerge(set rangeq.Discrete, mgr *filemgr.Manager) (*bitvec.Bitvector, error) {
	if c.partition.RowCount() <= sortedSearchThreshold {
		return c.sortedMergeInMemory(set, mgr)
	}
	if ref, err := mgr.TryGetFile(c.DataPath(), filemgr.MMapLargeFiles); err == nil {
		ref.Release()
		return c.sortedMergeInMemory(set, mgr)
	}
	return c.sortedMergeOutOfCore(set)
}

func (c *Column) sortedMergeInMemory(set rangeq.Discrete, mgr *filemgr.Manager) (*bitvec.Bitvector, error) {
	rows := c.partition.RowCount()
	ref, err := mgr.GetFile(c.DataPath(), filemgr.ReadFully)
	if err != nil {
		return nil, newErr(IO, c.Name, "open data file for sorted merge", err)
	}
	defer ref.Release()
	data := ref.Bytes()
	typ := c.Type

	if preferMarch(len(set.Values), rows) {
		valueAt := func(i int) (float64, error) { return decodeAt(typ, data, i) }
		out, merr := marchMerge(valueAt, rows, set.Values)
		if merr != nil {
			return nil, newErr(IO, c.Name, "march merge", merr)
		}
		return out, nil
	}

	find := func(v float64) int { return binarySearchLower(typ, data, rows, v) }
	findUpper := func(v float64) int { return binarySearchUpper(typ, data, rows, v) }
	return buildSortedUnion(set, find, findUpper, rows), nil
}

func (c *Column) sortedMergeOutOfCore(set rangeq.Discrete) (*bitvec.Bitvector, error) {
	rows := c.partition.RowCount()
	f, err := os.Open(c.DataPath())
	if err != nil {
		return nil, newErr(IO, c.Name, "open data file for out-of-core merge", err)
	}
	defer f.Close()
	sz := c.ElementSize()
	buf := make([]byte, sz)
	typ := c.Type

	valueAt := func(i int) (float64, error) {
		if _, err := f.ReadAt(buf, int64(i)*int64(sz)); err != nil {
			return 0, err
		}
		return decodeAt(typ, buf, 0)
	}

	if preferMarch(len(set.Values), rows) {
		out, merr := marchMerge(valueAt, rows, set.Values)
		if merr != nil {
			return nil, newErr(IO, c.Name, "out-of-core march merge", merr)
		}
		return out, nil
	}

	var probeErr error
	find := func(v float64) int {
		lo, hi := 0, rows
		for lo < hi {
			mid := int(uint(lo+hi) >> 1)
			x, err := valueAt(mid)
			if err != nil {
				probeErr = err
				return lo
			}
			if x < v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		return lo
	}
	findUpper := func(v float64) int {
		lo, hi := 0, rows
		for lo < hi {
			mid := int(uint(lo+hi) >> 1)
			x, err := valueAt(mid)
			if err != nil {
				probeErr = err
				return lo
			}
			if x <= v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		return lo
	}
	out := buildSortedUnion(set, find, findUpper, rows)
	if probeErr != nil {
		return nil, newErr(IO, c.Name, "out-of-core merge probe", probeErr)
	}
	return out, nil
}

// buildSortedUnion merges the tie-runs for set.Values (ascending) into
// a single bitvector, relying on the values already being in order so
// the runs themselves come out in ascending, non-overlapping order.
func buildSortedUnion(set rangeq.Discrete, find, findUpper func(float64) int, rows int) *bitvec.Bitvector {
	out := bitvec.New()
	pos := 0
	for _, v := range set.Values {
		lo, hi := find(v), findUpper(v)
		if hi <= lo || lo < pos {
			continue
		}
		out.Set(false, lo-pos)
		out.Set(true, hi-lo)
		pos = hi
	}
	out.Set(false, rows-pos)
	return out
}

func binarySearchLower(t schema.Type, data []byte, rows int, v float64) int {
	lo, hi := 0, rows
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		x, err := decodeAt(t, data, mid)
		if err != nil || math.IsNaN(x) {
			lo = mid + 1
			continue
		}
		if x < v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func binarySearchUpper(t schema.Type, data []byte, rows int, v float64) int {
	lo, hi := 0, rows
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		x, err := decodeAt(t, data, mid)
		if err != nil || math.IsNaN(x) {
			lo = mid + 1
			continue
		}
		if x <= v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
