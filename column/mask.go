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
	"fmt"
	"os"

	"github.com/colbit/fastbit/bitvec"
	"github.com/colbit/fastbit/schema"
)

// Mask returns the reconciled null mask for c, loading and caching it
// on first use. Callers receive a copy; the cached mask is never
// handed out by reference so that concurrent callers cannot observe
// each other's in-place edits.
//
// OID columns are always fully valid; their mask is synthesized
// rather than read from disk.
func (c *Column) Mask() (*bitvec.Bitvector, error) {
	c.fieldMu.Lock()
	if c.maskLoaded {
		m := c.mask.Copy()
		c.fieldMu.Unlock()
		return m, nil
	}
	c.fieldMu.Unlock()

	m, err := c.loadMask()
	if err != nil {
		return nil, err
	}

	c.fieldMu.Lock()
	c.mask = m
	c.maskLoaded = true
	out := m.Copy()
	c.fieldMu.Unlock()
	return out, nil
}

// InvalidateMask drops the cached mask so the next call to Mask
// reconciles from disk again.
func (c *Column) InvalidateMask() {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	c.maskLoaded = false
	c.mask = nil
}

// loadMask runs the reconciliation algorithm:
//  1. stat the data file; compute file_rows = file_size / element_size.
//  2. read .msk; if it has fewer bits than file_rows, pad with 1s.
//  3. if still short of the partition row count, pad with 0s; persist
//     the correction back to disk only when the partition is Stable.
func (c *Column) loadMask() (*bitvec.Bitvector, error) {
	rows := c.partition.RowCount()

	if c.Type == schema.OID {
		return bitvec.All(rows), nil
	}

	fileRows, err := c.fileRowCount()
	if err != nil {
		return nil, err
	}

	m, err := readMaskOrAllOnes(c.MaskPath(), fileRows)
	if err != nil {
		return nil, err
	}
	if m.Size() < fileRows {
		m.Set(true, fileRows-m.Size())
	}

	if m.Size() < rows {
		m.AdjustSize(m.Size(), rows)
		if c.partition.State == Stable {
			if err := m.Write(c.MaskPath()); err != nil {
				return nil, fmt.Errorf("column %s: persist reconciled mask: %w", c.Name, err)
			}
		}
	} else if m.Size() > rows {
		m.AdjustSize(m.Size(), rows)
	}
	return m, nil
}

// fileRowCount stats the column's data file and derives a row count
// from its size. TEXT columns have no fixed element size; their row
// count instead comes from the partition.
func (c *Column) fileRowCount() (int, error) {
	if c.Type == schema.TEXT {
		return c.partition.RowCount(), nil
	}
	sz := c.ElementSize()
	info, err := os.Stat(c.DataPath())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("column %s: stat data file: %w", c.Name, err)
	}
	return int(info.Size()) / sz, nil
}

// readMaskOrAllOnes reads path as a persisted bitvector. A missing
// file means "all rows valid", synthesized as n set bits.
func readMaskOrAllOnes(path string, n int) (*bitvec.Bitvector, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return bitvec.All(n), nil
		}
		return nil, fmt.Errorf("stat mask file: %w", err)
	}
	m, err := bitvec.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read mask file: %w", err)
	}
	return m, nil
}
