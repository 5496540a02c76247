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

// Package varray provides a non-owning, zero-copy typed view over a
// backing memory block held by a filemgr.Ref.
package varray

import (
	"fmt"
	"unsafe"

	"golang.org/x/exp/constraints"

	"github.com/colbit/fastbit/filemgr"
)

// Numeric is the set of elementary column types an ArrayT can view.
type Numeric interface {
	constraints.Integer | constraints.Float
}

// ArrayT is a non-owning view of []T backed by raw bytes held alive by
// a filemgr.Ref. The view keeps the Ref alive for as long as it is in
// use; callers must call Close when done with it.
type ArrayT[T Numeric] struct {
	ref  *filemgr.Ref
	data []T
}

// Of constructs an ArrayT[T] over the bytes held by ref. The byte
// length must be an exact multiple of sizeof(T); otherwise Of returns
// an error and ref is left untouched (the caller still owns it).
func Of[T Numeric](ref *filemgr.Ref) (*ArrayT[T], error) {
	b := ref.Bytes()
	var zero T
	sz := int(unsafe.Sizeof(zero))
	if len(b)%sz != 0 {
		return nil, fmt.Errorf("varray: byte length %d is not a multiple of element size %d", len(b), sz)
	}
	n := len(b) / sz
	var data []T
	if n > 0 {
		data = unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
	}
	return &ArrayT[T]{ref: ref, data: data}, nil
}

// Len returns the number of elements in the view.
func (a *ArrayT[T]) Len() int { return len(a.data) }

// At returns the element at index i.
func (a *ArrayT[T]) At(i int) T { return a.data[i] }

// Slice returns the raw backing slice; callers must not retain it
// beyond the lifetime of the ArrayT's Ref.
func (a *ArrayT[T]) Slice() []T { return a.data }

// Close releases the underlying Ref. After Close the view must not be
// used.
func (a *ArrayT[T]) Close() {
	if a.ref != nil {
		a.ref.Release()
		a.ref = nil
	}
	a.data = nil
}

// Find returns the index of the first element >= value (the lower
// bound), assuming the view is sorted ascending. If every element is
// smaller than value, it returns Len().
func (a *ArrayT[T]) Find(value T) int {
	lo, hi := 0, len(a.data)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if a.data[mid] < value {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// FindUpper returns the index of the first element > value (the
// strict upper bound), assuming the view is sorted ascending.
func (a *ArrayT[T]) FindUpper(value T) int {
	lo, hi := 0, len(a.data)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if a.data[mid] <= value {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Begin returns the first element and true, or the zero value and
// false if the view is empty.
func (a *ArrayT[T]) Begin() (T, bool) {
	if len(a.data) == 0 {
		var zero T
		return zero, false
	}
	return a.data[0], true
}

// End returns the last element and true, or the zero value and false
// if the view is empty.
func (a *ArrayT[T]) End() (T, bool) {
	if len(a.data) == 0 {
		var zero T
		return zero, false
	}
	return a.data[len(a.data)-1], true
}

// Swap exchanges the views held by a and b, including their
// underlying Refs.
func (a *ArrayT[T]) Swap(b *ArrayT[T]) {
	*a, *b = *b, *a
}
