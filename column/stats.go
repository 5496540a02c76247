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

	"github.com/colbit/fastbit/bitvec"
	"github.com/colbit/fastbit/filemgr"
)

// ComputeMin performs a full pass over the valid rows and returns the
// smallest value, updating the cached bounds.
func (c *Column) ComputeMin(mgr *filemgr.Manager) (float64, error) {
	min, _, _, err := c.computeAll(mgr)
	return min, err
}

// ComputeMax performs a full pass over the valid rows and returns the
// largest value, updating the cached bounds.
func (c *Column) ComputeMax(mgr *filemgr.Manager) (float64, error) {
	_, max, _, err := c.computeAll(mgr)
	return max, err
}

// ComputeSum performs a full pass over the valid rows and returns
// their sum.
func (c *Column) ComputeSum(mgr *filemgr.Manager) (float64, error) {
	_, _, sum, err := c.computeAll(mgr)
	return sum, err
}

func (c *Column) computeAll(mgr *filemgr.Manager) (min, max, sum float64, err error) {
	rows := c.partition.RowCount()
	sel, err := c.Select(bitvec.All(rows), mgr)
	if err != nil {
		return 0, 0, 0, err
	}
	if len(sel.Values) == 0 {
		return math.NaN(), math.NaN(), 0, nil
	}
	min, max = sel.Values[0], sel.Values[0]
	for _, v := range sel.Values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	c.SetBounds(min, max)
	return min, max, sum, nil
}

// GetActualMin prefers the index's reported minimum; if the index is
// absent or reports NaN, it falls back to a full scan.
func (c *Column) GetActualMin(mgr *filemgr.Manager) (float64, error) {
	if idx, release := c.idx.Acquire(); idx != nil {
		defer release()
		if v := idx.GetMin(); !math.IsNaN(v) {
			return v, nil
		}
	} else {
		release()
	}
	return c.ComputeMin(mgr)
}

// GetActualMax mirrors GetActualMin for the maximum.
func (c *Column) GetActualMax(mgr *filemgr.Manager) (float64, error) {
	if idx, release := c.idx.Acquire(); idx != nil {
		defer release()
		if v := idx.GetMax(); !math.IsNaN(v) {
			return v, nil
		}
	} else {
		release()
	}
	return c.ComputeMax(mgr)
}

// GetActualSum mirrors GetActualMin for the sum.
func (c *Column) GetActualSum(mgr *filemgr.Manager) (float64, error) {
	if idx, release := c.idx.Acquire(); idx != nil {
		defer release()
		if v := idx.GetSum(); !math.IsNaN(v) {
			return v, nil
		}
	} else {
		release()
	}
	return c.ComputeSum(mgr)
}

// GetDistribution delegates to the index's binning scheme; it fails
// if no index is present.
func (c *Column) GetDistribution() (boundaries []float64, weights []int64, err error) {
	idx, release := c.idx.Acquire()
	defer release()
	if idx == nil {
		return nil, nil, newErr(IndexFault, c.Name, "no index available for distribution", nil)
	}
	return idx.BinBoundaries(), idx.BinWeights(), nil
}

// GetCumulativeDistribution returns the running sum of GetDistribution's
// weights.
func (c *Column) GetCumulativeDistribution() (boundaries []float64, cumulative []int64, err error) {
	b, w, err := c.GetDistribution()
	if err != nil {
		return nil, nil, err
	}
	cum := make([]int64, len(w))
	var running int64
	for i, x := range w {
		running += x
		cum[i] = running
	}
	return b, cum, nil
}
