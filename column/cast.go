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
	"golang.org/x/exp/constraints"

	"github.com/colbit/fastbit/schema"
)

// ValuesAs re-interprets sel.Values as []T, given the column's
// declared type and the Go numeric type T the caller wants. It
// enforces the same widening-cast legality the selection path does:
// narrowing or signedness-hostile conversions are rejected rather
// than silently truncating.
func ValuesAs[T constraints.Integer | constraints.Float](c *Column, target schema.Type, sel *Selection) ([]T, error) {
	if !schema.CanWiden(c.Type, target) {
		return nil, newErr(TypeMismatch, c.Name, "requested type is not a valid widening of the column's declared type", nil)
	}
	out := make([]T, len(sel.Values))
	for i, v := range sel.Values {
		out[i] = T(v)
	}
	return out, nil
}
