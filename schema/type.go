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

// Package schema describes column types, their on-disk element
// widths, cast legality between them, and the text metadata stanza
// format a partition's column catalog is stored in.
package schema

import "fmt"

// Type is one of the fixed set of elementary column types the engine
// understands. CATEGORY and TEXT present an integer ID surface to
// everything above the dictionary layer.
type Type int

const (
	I8 Type = iota
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	F32
	F64
	OID
	CATEGORY
	TEXT
)

func (t Type) String() string {
	switch t {
	case I8:
		return "I8"
	case U8:
		return "U8"
	case I16:
		return "I16"
	case U16:
		return "U16"
	case I32:
		return "I32"
	case U32:
		return "U32"
	case I64:
		return "I64"
	case U64:
		return "U64"
	case F32:
		return "F32"
	case F64:
		return "F64"
	case OID:
		return "OID"
	case CATEGORY:
		return "CATEGORY"
	case TEXT:
		return "TEXT"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// ElementSize returns the fixed on-disk width of one value of t, in
// bytes. TEXT has no fixed width and returns 0; callers must treat
// TEXT's data file as a NUL-delimited byte stream instead.
func (t Type) ElementSize() int {
	switch t {
	case I8, U8:
		return 1
	case I16, U16:
		return 2
	case I32, U32, F32, CATEGORY:
		return 4
	case I64, U64, F64, OID:
		return 8
	case TEXT:
		return 0
	default:
		return 0
	}
}

// IsInteger reports whether t is one of the fixed-width integer types
// (excluding OID, CATEGORY, and TEXT, which are not arithmetic types
// to the evaluator even though they carry an integer surface).
func (t Type) IsInteger() bool {
	switch t {
	case I8, U8, I16, U16, I32, U32, I64, U64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether t is one of the floating-point types.
func (t Type) IsFloat() bool {
	return t == F32 || t == F64
}

// IsSigned reports whether t is a signed integer type.
func (t Type) IsSigned() bool {
	switch t {
	case I8, I16, I32, I64:
		return true
	default:
		return false
	}
}

// bitWidth returns the width in bits of a fixed-width integer type, or
// 0 if t is not one.
func bitWidth(t Type) int {
	switch t {
	case I8, U8:
		return 8
	case I16, U16:
		return 16
	case I32, U32:
		return 32
	case I64, U64:
		return 64
	default:
		return 0
	}
}

// CanWiden reports whether a value of type from may be losslessly cast
// to type to, under the rule: an unsigned type may widen only to a
// strictly wider signed type; same-signedness widening to the same
// or greater width is always allowed; narrowing or signedness-hostile
// conversions (e.g. a signed type to an unsigned type, or a wider type
// down to a narrower one) are rejected.
func CanWiden(from, to Type) bool {
	if from == to {
		return true
	}
	if from.IsFloat() || to.IsFloat() {
		// F32 -> F64 is the only floating widening; anything crossing
		// between integer and float requires an explicit conversion.
		return from == F32 && to == F64
	}
	if !from.IsInteger() || !to.IsInteger() {
		return false
	}
	fw, tw := bitWidth(from), bitWidth(to)
	if tw < fw {
		return false
	}
	if from.IsSigned() && !to.IsSigned() {
		return false
	}
	if !from.IsSigned() && to.IsSigned() {
		// unsigned -> signed is safe only if it strictly widens, since
		// the top bit of the narrower unsigned value still fits.
		return tw > fw
	}
	return true
}
