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

// Package dict holds the string dictionary sidecar for TEXT and
// CATEGORY columns. The evaluator never sees strings directly; it
// only ever operates on the u32 IDs a Dict assigns.
package dict

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/dchest/siphash"

	"github.com/colbit/fastbit/compr"
)

// Dict is a bidirectional string<->uint32 mapping, persisted as a
// ".dic" sidecar next to a TEXT/CATEGORY column's data file.
type Dict struct {
	terms []string
	ids   map[string]uint32
}

// New returns an empty Dict.
func New() *Dict {
	return &Dict{ids: make(map[string]uint32)}
}

// Intern returns the ID for s, assigning a new one if s has not been
// seen before.
func (d *Dict) Intern(s string) uint32 {
	if id, ok := d.ids[s]; ok {
		return id
	}
	id := uint32(len(d.terms))
	d.terms = append(d.terms, s)
	d.ids[s] = id
	return id
}

// Lookup returns the ID assigned to s, if any.
func (d *Dict) Lookup(s string) (uint32, bool) {
	id, ok := d.ids[s]
	return id, ok
}

// Term returns the string assigned to id.
func (d *Dict) Term(id uint32) (string, bool) {
	if int(id) >= len(d.terms) {
		return "", false
	}
	return d.terms[id], true
}

// Len returns the number of distinct terms.
func (d *Dict) Len() int { return len(d.terms) }

const dictCompression = "zstd"

// Write persists the dictionary to path as a zstd-compressed,
// length-prefixed term list: a 32-byte little-endian header (the
// uncompressed size, the term count, and the two 64-bit halves of a
// SipHash-128 of the uncompressed term list), then the compressed
// bytes of the NUL-joined term list in ID order. The hash guards
// against a sidecar silently going stale relative to the column it
// maps.
func (d *Dict) Write(path string) (err error) {
	var raw []byte
	for _, t := range d.terms {
		raw = append(raw, t...)
		raw = append(raw, 0)
	}
	c := compr.Compression(dictCompression)
	packed := c.Compress(raw, nil)
	sumLo, sumHi := siphash.Hash128(0, 0, raw)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dict: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	var hdr [32]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(len(raw)))
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(len(d.terms)))
	binary.LittleEndian.PutUint64(hdr[16:24], sumLo)
	binary.LittleEndian.PutUint64(hdr[24:32], sumHi)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("dict: write %s: %w", path, err)
	}
	if _, err := w.Write(packed); err != nil {
		return fmt.Errorf("dict: write %s: %w", path, err)
	}
	return w.Flush()
}

// Read loads a dictionary previously written by Write, rejecting it if
// the recomputed SipHash does not match the persisted checksum.
func Read(path string) (*Dict, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dict: read %s: %w", path, err)
	}
	if len(raw) < 32 {
		return nil, fmt.Errorf("dict: %s too short for a header", path)
	}
	rawLen := binary.LittleEndian.Uint64(raw[0:8])
	nterms := binary.LittleEndian.Uint64(raw[8:16])
	wantLo := binary.LittleEndian.Uint64(raw[16:24])
	wantHi := binary.LittleEndian.Uint64(raw[24:32])

	dc := compr.Decompression(dictCompression)
	uncompressed := make([]byte, rawLen)
	if rawLen > 0 {
		if err := dc.Decompress(raw[32:], uncompressed); err != nil {
			return nil, fmt.Errorf("dict: decompress %s: %w", path, err)
		}
	}
	gotLo, gotHi := siphash.Hash128(0, 0, uncompressed)
	if gotLo != wantLo || gotHi != wantHi {
		return nil, fmt.Errorf("dict: %s failed checksum verification", path)
	}

	d := New()
	start := 0
	for i := 0; i < int(nterms); i++ {
		end := start
		for end < len(uncompressed) && uncompressed[end] != 0 {
			end++
		}
		d.Intern(string(uncompressed[start:end]))
		start = end + 1
	}
	return d, nil
}
