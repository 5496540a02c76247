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

	"github.com/colbit/fastbit/schema"
)

// Truncate shortens c's data file and mask to exactly n rows.
func (c *Column) Truncate(n int) error {
	if n < 0 {
		return newErr(Schema, c.Name, "negative truncate count", nil)
	}
	c.Lock()
	defer c.Unlock()

	// The data file is about to be rewritten (or truncated) in place;
	// drop any resident mapping or buffer first.
	c.partition.files.FlushFile(c.DataPath())

	if c.Type == schema.TEXT {
		if err := c.truncateText(n); err != nil {
			return err
		}
	} else {
		if err := c.truncateFixedWidth(n); err != nil {
			return err
		}
	}

	m, err := readMaskOrAllOnes(c.MaskPath(), n)
	if err != nil {
		return newErr(IO, c.Name, "read mask before truncate", err)
	}
	currentValid := m.Cnt()
	m.AdjustSize(currentValid, n)
	if m.Cnt() == m.Size() {
		os.Remove(c.MaskPath())
	} else if err := m.Write(c.MaskPath()); err != nil {
		return newErrCode(CodeWriteFailed, IO, c.Name, "persist truncated mask", err)
	}

	c.InvalidateMask()
	return nil
}

func (c *Column) truncateFixedWidth(n int) error {
	sz := c.ElementSize()
	target := int64(n) * int64(sz)
	f, err := os.OpenFile(c.DataPath(), os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return newErr(IO, c.Name, "open data file for truncate", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return newErr(IO, c.Name, "stat data file", err)
	}
	if info.Size() < target {
		if err := padZerosAt(f, info.Size(), target-info.Size()); err != nil {
			return newErr(IO, c.Name, "pad short data file before truncate", err)
		}
		return nil
	}
	if err := f.Truncate(target); err != nil {
		return newErr(IO, c.Name, "truncate data file", err)
	}
	return nil
}

// truncateText scans forward from the start of the file counting NUL
// terminators until n strings have been seen, then truncates there.
// If fewer than n strings exist, it appends empty strings (bare NULs)
// until the count is reached.
func (c *Column) truncateText(n int) error {
	f, err := os.OpenFile(c.DataPath(), os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return newErr(IO, c.Name, "open text data file for truncate", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return newErr(IO, c.Name, "stat text data file", err)
	}
	buf := make([]byte, info.Size())
	if _, err := f.ReadAt(buf, 0); err != nil {
		return newErr(IO, c.Name, "read text data file", err)
	}

	seen := 0
	offset := int64(0)
	for i, b := range buf {
		if b == 0 {
			seen++
			if seen == n {
				offset = int64(i) + 1
				break
			}
		}
	}
	if seen < n {
		missing := n - seen
		if err := f.Truncate(info.Size()); err != nil {
			return newErr(IO, c.Name, "truncate text data file", err)
		}
		if _, err := f.Seek(0, 2); err != nil {
			return newErr(IO, c.Name, "seek to end of text data file", err)
		}
		if _, err := f.Write(make([]byte, missing)); err != nil {
			return newErr(IO, c.Name, "append empty strings", err)
		}
		return nil
	}
	if err := f.Truncate(offset); err != nil {
		return newErr(IO, c.Name, fmt.Sprintf("truncate text data file at offset %d", offset), err)
	}
	return nil
}
