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

package varray

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/colbit/fastbit/filemgr"
)

func writeU32s(t *testing.T, path string, vals []uint32) {
	t.Helper()
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestArrayTLenAndAt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "col")
	writeU32s(t, path, []uint32{10, 20, 30, 40})

	m := filemgr.New()
	ref, err := m.GetFile(path, filemgr.ReadFully)
	if err != nil {
		t.Fatal(err)
	}
	a, err := Of[uint32](ref)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.Len() != 4 {
		t.Fatalf("len = %d, want 4", a.Len())
	}
	for i, want := range []uint32{10, 20, 30, 40} {
		if got := a.At(i); got != want {
			t.Fatalf("At(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestArrayTFindAndFindUpper(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "col")
	writeU32s(t, path, []uint32{1, 2, 2, 2, 5, 9})

	m := filemgr.New()
	ref, err := m.GetFile(path, filemgr.ReadFully)
	if err != nil {
		t.Fatal(err)
	}
	a, err := Of[uint32](ref)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if got := a.Find(2); got != 1 {
		t.Fatalf("Find(2) = %d, want 1", got)
	}
	if got := a.FindUpper(2); got != 4 {
		t.Fatalf("FindUpper(2) = %d, want 4", got)
	}
	if got := a.Find(0); got != 0 {
		t.Fatalf("Find(0) = %d, want 0", got)
	}
	if got := a.Find(100); got != a.Len() {
		t.Fatalf("Find(100) = %d, want Len()", got)
	}
	if got := a.FindUpper(100); got != a.Len() {
		t.Fatalf("FindUpper(100) = %d, want Len()", got)
	}
}

func TestArrayTBeginEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "col")
	writeU32s(t, path, []uint32{7, 8, 9})

	m := filemgr.New()
	ref, err := m.GetFile(path, filemgr.ReadFully)
	if err != nil {
		t.Fatal(err)
	}
	a, err := Of[uint32](ref)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	first, ok := a.Begin()
	if !ok || first != 7 {
		t.Fatalf("Begin() = (%d, %v), want (7, true)", first, ok)
	}
	last, ok := a.End()
	if !ok || last != 9 {
		t.Fatalf("End() = (%d, %v), want (9, true)", last, ok)
	}
}

func TestArrayTMisalignedLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "col")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0644); err != nil {
		t.Fatal(err)
	}
	m := filemgr.New()
	ref, err := m.GetFile(path, filemgr.ReadFully)
	if err != nil {
		t.Fatal(err)
	}
	defer ref.Release()
	if _, err := Of[uint32](ref); err == nil {
		t.Fatal("expected an error for a byte length not a multiple of 4")
	}
}
