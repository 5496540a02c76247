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
)

// scanRange performs a full-scan fallback: it reads every row in
// candidates (an ascending index set) and keeps the ones rng admits,
// returning a bitvector of size rows with 1s exactly at those rows.
func (c *Column) scanRange(rng rangeq.Continuous, candidates *bitvec.Bitvector, mgr *filemgr.Manager) (*bitvec.Bitvector, error) {
	return c.scanWith(candidates, mgr, rng.Admits)
}

// scanDiscrete is scanRange's counterpart for an IN-set test.
func (c *Column) scanDiscrete(member func(float64) bool, candidates *bitvec.Bitvector, mgr *filemgr.Manager) (*bitvec.Bitvector, error) {
	return c.scanWith(candidates, mgr, member)
}

func (c *Column) scanWith(candidates *bitvec.Bitvector, mgr *filemgr.Manager, admits func(float64) bool) (*bitvec.Bitvector, error) {
	rows := c.partition.RowCount()
	ref, err := mgr.GetFile(c.DataPath(), filemgr.ReadFully)
	if err != nil {
		return nil, newErr(IO, c.Name, "open data file for scan", err)
	}
	defer ref.Release()
	data := ref.Bytes()

	out := bitvec.New()
	pos := 0
	var decodeErr error
	it := candidates.FirstIndexSet()
	for {
		set, ok := it.Next()
		if !ok {
			break
		}
		set.Each(func(row int) {
			if decodeErr != nil {
				return
			}
			v, derr := decodeAt(c.Type, data, row)
			if derr != nil {
				decodeErr = derr
				return
			}
			out.Set(false, row-pos)
			out.Set(admits(v), 1)
			pos = row + 1
		})
		if decodeErr != nil {
			return nil, newErr(IO, c.Name, "decode value during scan", decodeErr)
		}
	}
	out.Set(false, rows-pos)
	return out, nil
}
