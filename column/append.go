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
	"io"
	"os"

	"github.com/colbit/fastbit/bitvec"
	"github.com/colbit/fastbit/index"
)

// Some on-disk formats inherited a 2 GiB ceiling on (old+new) *
// element_size from a 32-bit offset type; Append does not enforce it.

// Append extends c's data file and mask with N new rows sourced from
// srcDir (a sibling directory holding a same-named, same-shaped
// column), writing into c's own partition directory. It returns N on
// success.
//
// Appending into the column's own currently active directory also
// invalidates (and will lazily reload) the cached mask.
func (c *Column) Append(srcDir string, n int) (int, error) {
	if n < 0 {
		return 0, newErr(Schema, c.Name, "negative append count", nil)
	}
	sz := c.ElementSize()
	if sz <= 0 {
		return 0, newErr(Schema, c.Name, "element size must be positive to append", nil)
	}

	c.Lock()
	defer c.Unlock()

	oldRows := c.partition.RowCount()
	dstPath := c.DataPath()
	srcPath := srcDir + "/" + c.Name

	// The data file is about to be rewritten in place; drop any
	// resident mapping or buffer first so no other reader is handed
	// stale bytes out from under the rewrite.
	c.partition.files.FlushFile(dstPath)

	if err := appendBytes(dstPath, srcPath, oldRows, n, sz); err != nil {
		return 0, newErr(IO, c.Name, "append data bytes", err)
	}

	if err := c.mergeAppendMask(srcDir, oldRows, n); err != nil {
		return 0, err
	}

	if err := c.reconcileIndexOnAppend(srcDir, n); err != nil {
		return 0, err
	}

	c.SetSorted(false)
	c.InvalidateMask()
	return n, nil
}

// appendBytes implements steps 2-4 of the append algorithm: pad the
// destination up to old*elemSize if it is short, stream up to n*elemSize
// bytes from the source (zero-filling whatever the source lacks), then
// re-pad to the exact final size.
func appendBytes(dstPath, srcPath string, oldRows, n, elemSize int) error {
	dst, err := os.OpenFile(dstPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	defer dst.Close()

	info, err := dst.Stat()
	if err != nil {
		return fmt.Errorf("stat destination: %w", err)
	}
	wantOffset := int64(oldRows) * int64(elemSize)
	if info.Size() < wantOffset {
		if err := padZerosAt(dst, info.Size(), wantOffset-info.Size()); err != nil {
			return fmt.Errorf("pad short destination: %w", err)
		}
	}
	if _, err := dst.Seek(wantOffset, io.SeekStart); err != nil {
		return fmt.Errorf("seek to append offset: %w", err)
	}

	wantBytes := int64(n) * int64(elemSize)
	var copied int64
	if src, serr := os.Open(srcPath); serr == nil {
		defer src.Close()
		copied, err = io.CopyN(dst, src, wantBytes)
		if err != nil && err != io.EOF {
			return fmt.Errorf("stream source bytes: %w", err)
		}
	}
	if copied < wantBytes {
		if err := padZerosAt(dst, wantOffset+copied, wantBytes-copied); err != nil {
			return fmt.Errorf("pad short source tail: %w", err)
		}
	}
	return nil
}

func padZerosAt(f *os.File, offset, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	const chunk = 64 * 1024
	buf := make([]byte, chunk)
	for n > 0 {
		w := int64(chunk)
		if n < w {
			w = n
		}
		if _, err := f.Write(buf[:w]); err != nil {
			return err
		}
		n -= w
	}
	return nil
}

// mergeAppendMask implements step 5: load the source mask padded to n
// valid rows, load the destination mask padded to oldRows valid rows,
// append the two, and persist unless the result is all-set.
func (c *Column) mergeAppendMask(srcDir string, oldRows, n int) error {
	srcMaskPath := srcDir + "/" + c.Name + ".msk"
	a, err := readMaskOrAllOnes(srcMaskPath, n)
	if err != nil {
		return newErr(IO, c.Name, "read source mask", err)
	}
	a.AdjustSize(a.Size(), n)

	b, err := readMaskOrAllOnes(c.MaskPath(), oldRows)
	if err != nil {
		return newErr(IO, c.Name, "read destination mask", err)
	}
	b.AdjustSize(b.Size(), oldRows)

	concatenated, err := concatMasks(b, a)
	if err != nil {
		return newErr(Invariant, c.Name, "concatenate masks", err)
	}
	if concatenated.Size() != oldRows+n {
		return newErr(Invariant, c.Name, "merged mask size mismatch", nil)
	}

	if concatenated.Cnt() == concatenated.Size() {
		os.Remove(c.MaskPath())
		return nil
	}
	if err := concatenated.Write(c.MaskPath()); err != nil {
		return newErrCode(CodeWriteFailed, IO, c.Name, "persist merged mask", err)
	}
	return nil
}

// concatMasks returns a new Bitvector equal to a followed by b.
func concatMasks(a, b *bitvec.Bitvector) (*bitvec.Bitvector, error) {
	out := bitvec.New()
	it := a.FirstIndexSet()
	pos := 0
	for {
		set, ok := it.Next()
		if !ok {
			break
		}
		if set.IsSparse() {
			for _, idx := range set.Sparse {
				out.Set(false, idx-pos)
				out.Set(true, 1)
				pos = idx + 1
			}
			continue
		}
		out.Set(false, set.Range.Start-pos)
		out.Set(true, set.Range.Len())
		pos = set.Range.End
	}
	out.Set(false, a.Size()-pos)

	pos = 0
	it = b.FirstIndexSet()
	for {
		set, ok := it.Next()
		if !ok {
			break
		}
		if set.IsSparse() {
			for _, idx := range set.Sparse {
				out.Set(false, idx-pos)
				out.Set(true, 1)
				pos = idx + 1
			}
			continue
		}
		out.Set(false, set.Range.Start-pos)
		out.Set(true, set.Range.Len())
		pos = set.Range.End
	}
	out.Set(false, b.Size()-pos)
	return out, nil
}

// reconcileIndexOnAppend implements step 6: extend a current index in
// place if it still matches oldRows; otherwise drop the stale blob.
func (c *Column) reconcileIndexOnAppend(srcDir string, n int) error {
	oldRows := c.partition.RowCount()
	stale := false
	err := c.idx.MutateLocked(func(idx index.Index) error {
		if idx == nil || idx.NRows() != oldRows {
			stale = true
			return nil
		}
		return idx.Append(c.partition.Dir, srcDir, n)
	})
	if stale {
		c.idx.Unload()
		os.Remove(c.IndexPath())
		return nil
	}
	if err != nil {
		c.idx.Unload()
		os.Remove(c.IndexPath())
		return newErr(IndexFault, c.Name, "append to index", err)
	}
	return nil
}
