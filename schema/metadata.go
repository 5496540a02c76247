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

package schema

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ColumnMeta is the parsed form of one column stanza from a
// partition's metadata file.
type ColumnMeta struct {
	Name        string
	Description string
	Type        Type
	Minimum     float64
	Maximum     float64
	Bins        string
	Index       string
	Sorted      bool

	// HasMinimum/HasMaximum distinguish an explicit bound from the
	// zero value, since 0 is a legitimate minimum or maximum.
	HasMinimum bool
	HasMaximum bool
}

// resolveType maps the metadata file's type-word convention to a
// Type. It mirrors the first-letter dispatch (with second-letter
// refinement for the unsigned families) documented for this format.
func resolveType(word string) (Type, bool) {
	if word == "" {
		return 0, false
	}
	lower := strings.ToLower(strings.TrimSpace(word))
	unsignedPrefix := false
	if strings.HasPrefix(lower, "unsigned ") {
		lower = strings.TrimPrefix(lower, "unsigned ")
		unsignedPrefix = true
	}
	if lower == "" {
		return 0, false
	}
	first := lower[0]
	second := byte(0)
	if len(lower) > 1 {
		second = lower[1]
	}
	if unsignedPrefix {
		// "unsigned <word>": the first letter of <word> selects among
		// the unsigned family the same way a second letter does for
		// a literal "u..." word.
		switch first {
		case 's':
			return U16, true
		case 'b', 'c':
			return U8, true
		case 'l':
			return U64, true
		default:
			return U32, true
		}
	}
	switch first {
	case 'i':
		return I32, true
	case 'r', 'f':
		return F32, true
	case 'd':
		return F64, true
	case 'l':
		return I64, true
	case 'v':
		return U64, true
	case 'b':
		return I8, true
	case 'a':
		return U8, true
	case 'h':
		return I16, true
	case 'g':
		return U16, true
	case 'c', 'k':
		return CATEGORY, true
	case 't':
		return TEXT, true
	case 's':
		if second == 'h' {
			return I16, true
		}
		return TEXT, true
	case 'u':
		switch second {
		case 's':
			return U16, true
		case 'b', 'c':
			return U8, true
		case 'l':
			return U64, true
		default:
			return U32, true
		}
	default:
		return 0, false
	}
}

// unquote strips a single pair of surrounding double quotes, if
// present.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// splitKeyValue splits line at its first '=' and returns the trimmed
// key and value; ok is false when the line has no '='.
func splitKeyValue(line string) (key, value string, ok bool) {
	if i := strings.IndexByte(line, '='); i >= 0 {
		return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
	}
	return "", "", false
}

// ParseStanzas reads a sequence of `Begin Column ... End Column`
// blocks (alias `Begin Property ... End Property`) from r. Unknown
// lines inside a stanza are ignored. A stanza missing `name=` or
// carrying an unrecognized data_type is dropped from the result
// rather than aborting the whole parse.
func ParseStanzas(r io.Reader) ([]ColumnMeta, error) {
	sc := bufio.NewScanner(r)
	var out []ColumnMeta
	var cur *ColumnMeta
	var typeWord string
	inStanza := false

	flush := func() {
		if cur == nil {
			return
		}
		if cur.Name == "" {
			cur = nil
			return
		}
		if typeWord != "" {
			if t, ok := resolveType(typeWord); ok {
				cur.Type = t
			} else {
				cur = nil
				return
			}
		}
		out = append(out, *cur)
		cur = nil
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "begin column"), strings.HasPrefix(lower, "begin property"):
			cur = &ColumnMeta{}
			typeWord = ""
			inStanza = true
			continue
		case strings.HasPrefix(lower, "end column"), strings.HasPrefix(lower, "end property"):
			flush()
			inStanza = false
			continue
		}
		if !inStanza {
			continue
		}
		key, value, ok := splitKeyValue(line)
		if !ok {
			if strings.HasPrefix(lower, "bins:") {
				cur.Bins = strings.TrimSpace(line[strings.IndexByte(line, ':')+1:])
			}
			continue
		}
		keyLower := strings.ToLower(key)
		switch {
		case keyLower == "name" || keyLower == "property_name":
			cur.Name = unquote(value)
		case keyLower == "description" || keyLower == "property_description":
			cur.Description = unquote(value)
		case keyLower == "data_type" || keyLower == "property_data_type" || keyLower == "type":
			typeWord = unquote(value)
		case keyLower == "minimum":
			if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				cur.Minimum = f
				cur.HasMinimum = true
			}
		case keyLower == "maximum":
			if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				cur.Maximum = f
				cur.HasMaximum = true
			}
		case keyLower == "index":
			cur.Index = unquote(value)
		case keyLower == "sorted":
			cur.Sorted = strings.EqualFold(strings.TrimSpace(value), "true")
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("schema: scan metadata: %w", err)
	}
	return out, nil
}

// canonicalTypeWord returns the metadata-file type word WriteStanza
// uses for t. Serialization always picks one canonical spelling per
// type so that parse -> serialize -> parse is idempotent.
func canonicalTypeWord(t Type) string {
	switch t {
	case I8:
		return "b"
	case U8:
		return "a"
	case I16:
		return "h"
	case U16:
		return "g"
	case I32:
		return "i"
	case U32:
		return "u"
	case I64:
		return "l"
	case U64:
		return "v"
	case F32:
		return "f"
	case F64:
		return "d"
	case CATEGORY:
		return "c"
	case TEXT:
		return "t"
	default:
		return "i"
	}
}

// formatBound prints a bound with the type-appropriate precision: 8
// significant digits for F32 columns, 15 for F64, and plain integer
// formatting (unsigned printed as unsigned) for integer columns.
func formatBound(t Type, v float64) string {
	switch {
	case t == F32:
		return strconv.FormatFloat(v, 'g', 8, 32)
	case t == F64:
		return strconv.FormatFloat(v, 'g', 15, 64)
	case !t.IsSigned() && t.IsInteger():
		return strconv.FormatUint(uint64(int64(v)), 10)
	default:
		return strconv.FormatInt(int64(v), 10)
	}
}

// WriteStanza serializes one column's metadata in the `Begin Column`
// / `End Column` stanza format.
func WriteStanza(w io.Writer, c ColumnMeta) error {
	var b strings.Builder
	b.WriteString("Begin Column\n")
	fmt.Fprintf(&b, "name = %q\n", c.Name)
	if c.Description != "" {
		fmt.Fprintf(&b, "description = %q\n", c.Description)
	}
	fmt.Fprintf(&b, "data_type = %s\n", canonicalTypeWord(c.Type))
	if c.HasMinimum {
		fmt.Fprintf(&b, "minimum = %s\n", formatBound(c.Type, c.Minimum))
	}
	if c.HasMaximum {
		fmt.Fprintf(&b, "maximum = %s\n", formatBound(c.Type, c.Maximum))
	}
	if c.Bins != "" {
		fmt.Fprintf(&b, "Bins: %s\n", c.Bins)
	}
	if c.Index != "" {
		fmt.Fprintf(&b, "index = %q\n", c.Index)
	}
	fmt.Fprintf(&b, "sorted = %t\n", c.Sorted)
	b.WriteString("End Column\n")
	_, err := io.WriteString(w, b.String())
	if err != nil {
		return fmt.Errorf("schema: write stanza: %w", err)
	}
	return nil
}

// WriteStanzas serializes every stanza in cols, in order.
func WriteStanzas(w io.Writer, cols []ColumnMeta) error {
	for _, c := range cols {
		if err := WriteStanza(w, c); err != nil {
			return err
		}
	}
	return nil
}
