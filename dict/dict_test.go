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

package dict

import (
	"path/filepath"
	"testing"
)

func TestInternAndLookup(t *testing.T) {
	d := New()
	a := d.Intern("alpha")
	b := d.Intern("beta")
	a2 := d.Intern("alpha")
	if a != a2 {
		t.Fatalf("Intern(alpha) not stable: %d != %d", a, a2)
	}
	if a == b {
		t.Fatal("distinct terms got the same ID")
	}
	if term, ok := d.Term(a); !ok || term != "alpha" {
		t.Fatalf("Term(%d) = (%q, %v), want (alpha, true)", a, term, ok)
	}
	if _, ok := d.Lookup("gamma"); ok {
		t.Fatal("Lookup should fail for an unseen term")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	d := New()
	d.Intern("alpha")
	d.Intern("beta")
	d.Intern("")
	d.Intern("gamma")

	path := filepath.Join(t.TempDir(), "col.dic")
	if err := d.Write(path); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != d.Len() {
		t.Fatalf("Len() = %d, want %d", got.Len(), d.Len())
	}
	for id := uint32(0); id < uint32(d.Len()); id++ {
		want, _ := d.Term(id)
		term, ok := got.Term(id)
		if !ok || term != want {
			t.Fatalf("Term(%d) = (%q, %v), want (%q, true)", id, term, ok, want)
		}
	}
}
