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
	"math"
	"os"

	"github.com/colbit/fastbit/bitvec"
	"github.com/colbit/fastbit/dict"
	"github.com/colbit/fastbit/filemgr"
	"github.com/colbit/fastbit/schema"
	"github.com/colbit/fastbit/varray"
)

// selectiveRowThreshold bounds when the selective (mmap-or-nothing)
// read path is attempted instead of reading the whole file: rows must
// be at least this many, and the mask must select no more than half
// of them.
const selectiveRowThreshold = 1_000_000

// Selection is the result of a typed read: values in logical row
// order, aligned 1-to-1 with Rows (the absolute row index each value
// came from), also in strictly ascending order.
type Selection struct {
	Values []float64
	Rows   []int
}

// Select materializes the values of c at the rows marked in m,
// returning them in logical row order along with the corresponding
// absolute row indices. m must have Size() == partition row count;
// the effective mask applied is m intersected with c's own null mask.
//
// Values come back as float64 regardless of the column's on-disk
// representation; ValuesAs re-interprets a Selection as a narrower Go
// type once widening legality has been checked.
func (c *Column) Select(m *bitvec.Bitvector, mgr *filemgr.Manager) (*Selection, error) {
	colMask, err := c.Mask()
	if err != nil {
		return nil, err
	}
	eff := bitvec.And(colMask, m)
	rows := c.partition.RowCount()

	if c.Type == schema.OID {
		return selectOID(c, eff, mgr)
	}
	if c.Type == schema.TEXT {
		return c.selectText(eff, mgr)
	}

	if useSelectivePath(rows, eff.Cnt(), c.ElementSize(), mgr) {
		if sel, ok, err := c.selectSelective(eff, mgr); err != nil {
			return nil, err
		} else if ok {
			return sel, nil
		}
	}
	return c.selectReadAll(eff, mgr)
}

// useSelectivePath implements the §4.5 decision rule: rows >= 1M,
// 2*K <= rows, and the mask is compact enough relative to the page
// size that positional reads should beat reading everything.
func useSelectivePath(rows, k, elemSize int, mgr *filemgr.Manager) bool {
	if rows < selectiveRowThreshold || 2*k > rows {
		return false
	}
	pageSize := mgr.PageSize()
	if pageSize <= 0 {
		return false
	}
	maskBytes := (rows + 7) / 8
	return float64(maskBytes)/4 < float64(rows*elemSize)/float64(pageSize)/8
}

// selectReadAll materializes the whole data file and copies out the
// masked rows. This is also the unconditional path for small row
// counts, where it is cheaper than chasing individual runs.
func (c *Column) selectReadAll(eff *bitvec.Bitvector, mgr *filemgr.Manager) (*Selection, error) {
	ref, err := mgr.GetFile(c.DataPath(), filemgr.ReadFully)
	if err != nil {
		return nil, newErr(IO, c.Name, "open data file", err)
	}
	defer ref.Release()

	sel := &Selection{}
	it := eff.FirstIndexSet()
	for {
		set, ok := it.Next()
		if !ok {
			break
		}
		set.Each(func(row int) {
			v, rerr := decodeAt(c.Type, ref.Bytes(), row)
			if rerr != nil {
				err = rerr
				return
			}
			sel.Values = append(sel.Values, v)
			sel.Rows = append(sel.Rows, row)
		})
		if err != nil {
			return nil, newErr(IO, c.Name, "decode value", err)
		}
	}
	if len(sel.Values) != eff.Cnt() {
		return nil, newErr(Invariant, c.Name, "selected count does not match mask cnt", nil)
	}
	return sel, nil
}

// selectSelective attempts the mmap-or-nothing path: if the file is
// not already resident it reports ok=false so the caller falls back
// to reading the whole file, rather than forcing a fault.
func (c *Column) selectSelective(eff *bitvec.Bitvector, mgr *filemgr.Manager) (*Selection, bool, error) {
	ref, err := mgr.TryGetFile(c.DataPath(), filemgr.MMapLargeFiles)
	if err == filemgr.ErrNotResident {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, newErr(IO, c.Name, "positional open of data file", err)
	}
	defer ref.Release()

	f, ferr := os.Open(c.DataPath())
	if ferr != nil {
		return nil, false, newErr(IO, c.Name, "positional open of data file", ferr)
	}
	defer f.Close()

	sel := &Selection{}
	sz := c.ElementSize()
	buf := make([]byte, sz)
	it := eff.FirstIndexSet()
	for {
		set, ok := it.Next()
		if !ok {
			break
		}
		if set.IsSparse() {
			for _, row := range set.Sparse {
				if _, err := f.ReadAt(buf, int64(row)*int64(sz)); err != nil {
					return nil, false, newErr(IO, c.Name, "positional read", err)
				}
				v, err := decodeAt(c.Type, buf, 0)
				if err != nil {
					return nil, false, newErr(IO, c.Name, "decode value", err)
				}
				sel.Values = append(sel.Values, v)
				sel.Rows = append(sel.Rows, row)
			}
			continue
		}
		n := set.Range.Len()
		chunk := make([]byte, n*sz)
		if _, err := f.ReadAt(chunk, int64(set.Range.Start)*int64(sz)); err != nil {
			return nil, false, newErr(IO, c.Name, "positional read run", err)
		}
		for i := 0; i < n; i++ {
			v, err := decodeAt(c.Type, chunk, i)
			if err != nil {
				return nil, false, newErr(IO, c.Name, "decode value", err)
			}
			sel.Values = append(sel.Values, v)
			sel.Rows = append(sel.Rows, set.Range.Start+i)
		}
	}
	return sel, true, nil
}

// selectOID always returns fully-valid rows (OID has no concept of
// null), each the full 64-bit (run#, event#) value converted to
// float64.
func selectOID(c *Column, eff *bitvec.Bitvector, mgr *filemgr.Manager) (*Selection, error) {
	ref, err := mgr.GetFile(c.DataPath(), filemgr.ReadFully)
	if err != nil {
		return nil, newErr(IO, c.Name, "open OID data file", err)
	}
	defer ref.Release()
	a, err := varray.Of[uint64](ref)
	if err != nil {
		return nil, newErr(IO, c.Name, "view OID data", err)
	}
	sel := &Selection{}
	it := eff.FirstIndexSet()
	for {
		set, ok := it.Next()
		if !ok {
			break
		}
		set.Each(func(row int) {
			if row < a.Len() {
				sel.Values = append(sel.Values, float64(a.At(row)))
				sel.Rows = append(sel.Rows, row)
			}
		})
	}
	return sel, nil
}

// decodeAt reads the index-th element (index measured in element
// units from the start of buf) as t and returns it widened to float64.
func decodeAt(t schema.Type, buf []byte, index int) (float64, error) {
	sz := t.ElementSize()
	off := index * sz
	if off+sz > len(buf) {
		return 0, fmt.Errorf("decode offset %d exceeds buffer of length %d", off, len(buf))
	}
	b := buf[off : off+sz]
	switch t {
	case schema.I8:
		return float64(int8(b[0])), nil
	case schema.U8:
		return float64(b[0]), nil
	case schema.I16:
		return float64(int16(le16(b))), nil
	case schema.U16:
		return float64(le16(b)), nil
	case schema.I32:
		return float64(int32(le32(b))), nil
	case schema.U32, schema.CATEGORY:
		return float64(le32(b)), nil
	case schema.I64:
		return float64(int64(le64(b))), nil
	case schema.U64:
		return float64(le64(b)), nil
	case schema.F32:
		return float64(math.Float32frombits(le32(b))), nil
	case schema.F64:
		return math.Float64frombits(le64(b)), nil
	default:
		return 0, fmt.Errorf("decodeAt: unsupported type %v", t)
	}
}

// selectText reads the TEXT column's NUL-delimited string file, loads
// the column's dictionary sidecar, and translates each masked row's
// string into the u32 ID the evaluator sees, per §4.5 ("CATEGORY/TEXT
// columns present as 32-bit unsigned IDs").
func (c *Column) selectText(eff *bitvec.Bitvector, mgr *filemgr.Manager) (*Selection, error) {
	ref, err := mgr.GetFile(c.DataPath(), filemgr.ReadFully)
	if err != nil {
		return nil, newErr(IO, c.Name, "open TEXT data file", err)
	}
	defer ref.Release()

	d, err := dict.Read(c.DictPath())
	if err != nil {
		return nil, newErr(IO, c.Name, "read dictionary sidecar", err)
	}

	terms := splitNulTerminated(ref.Bytes(), c.partition.RowCount())

	sel := &Selection{}
	it := eff.FirstIndexSet()
	for {
		set, ok := it.Next()
		if !ok {
			break
		}
		var termErr error
		set.Each(func(row int) {
			if termErr != nil || row >= len(terms) {
				return
			}
			id, ok := d.Lookup(terms[row])
			if !ok {
				termErr = fmt.Errorf("row %d: term %q not present in dictionary", row, terms[row])
				return
			}
			sel.Values = append(sel.Values, float64(id))
			sel.Rows = append(sel.Rows, row)
		})
		if termErr != nil {
			return nil, newErr(Invariant, c.Name, "translate TEXT term to dictionary id", termErr)
		}
	}
	return sel, nil
}

// splitNulTerminated splits data on NUL bytes into at most maxRows
// terms, in row order.
func splitNulTerminated(data []byte, maxRows int) []string {
	out := make([]string, 0, maxRows)
	start := 0
	for i, b := range data {
		if len(out) == maxRows {
			break
		}
		if b == 0 {
			out = append(out, string(data[start:i]))
			start = i + 1
		}
	}
	return out
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
