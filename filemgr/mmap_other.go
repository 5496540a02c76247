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

//go:build !linux

package filemgr

import "os"

// mmap falls back to a full read on platforms where we don't have a
// tuned mmap path; the Manager's block cache still gives callers the
// single-resident-copy behavior regardless of how the bytes got there.
func mmap(f *os.File, size int64) ([]byte, error) {
	return readFully(f, size)
}

func unmap(mem []byte) error {
	return nil
}
