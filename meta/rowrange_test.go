// Copyright (C) 2022 Sneller, Inc.
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

package meta

import "testing"

func TestRowRangeContains(t *testing.T) {
	r := RowRange{Start: RowKey{Int(10)}, End: RowKey{Int(20)}}
	if !r.Contains(RowKey{Int(10)}) {
		t.Fatal("start is inclusive")
	}
	if r.Contains(RowKey{Int(20)}) {
		t.Fatal("end is exclusive")
	}
	if !r.Contains(RowKey{Int(15)}) {
		t.Fatal("expected 15 to be contained")
	}
}

func TestDefaultRangeUnbounded(t *testing.T) {
	if !DefaultRange.IsDefault() {
		t.Fatal("zero value must be default")
	}
	if !DefaultRange.Contains(RowKey{Int(-1000000)}) {
		t.Fatal("default range must contain arbitrary keys")
	}
}

func TestRowRangeOverlaps(t *testing.T) {
	a := RowRange{Start: RowKey{Int(0)}, End: RowKey{Int(10)}}
	b := RowRange{Start: RowKey{Int(10)}, End: RowKey{Int(20)}}
	if a.Overlaps(b) {
		t.Fatal("adjacent half-open ranges must not overlap")
	}
	c := RowRange{Start: RowKey{Int(5)}, End: RowKey{Int(15)}}
	if !a.Overlaps(c) {
		t.Fatal("expected overlap")
	}
}

func TestRowFilterContainsAndDefault(t *testing.T) {
	f := Default()
	if !f.IsDefault() {
		t.Fatal("Default() must report IsDefault")
	}
	if !f.Contains(RowKey{Int(42)}) {
		t.Fatal("default filter matches everything")
	}

	narrow := Of(RowRange{Start: RowKey{Int(0)}, End: RowKey{Int(10)}})
	if narrow.Contains(RowKey{Int(50)}) {
		t.Fatal("narrow filter should not match out-of-range key")
	}
	if !narrow.Contains(RowKey{Int(5)}) {
		t.Fatal("narrow filter should match in-range key")
	}
}

func TestRowFilterTest(t *testing.T) {
	f := Of(RowRange{Start: RowKey{Int(0)}, End: RowKey{Int(100)}})
	if f.Test(RowKey{Int(0)}, RowKey{Int(50)}) != Always {
		t.Fatal("block fully inside the filter should be Always")
	}
	if f.Test(RowKey{Int(200)}, RowKey{Int(300)}) != Never {
		t.Fatal("disjoint block should be Never")
	}
	if f.Test(RowKey{Int(50)}, RowKey{Int(150)}) != Maybe {
		t.Fatal("partially overlapping block should be Maybe")
	}
}

func TestOR(t *testing.T) {
	a := Of(RowRange{Start: RowKey{Int(0)}, End: RowKey{Int(10)}})
	b := Of(RowRange{Start: RowKey{Int(20)}, End: RowKey{Int(30)}})
	combined := OR(a, b)
	if len(combined.Ranges) != 2 {
		t.Fatalf("expected 2 ranges, got %d", len(combined.Ranges))
	}
	if !combined.Contains(RowKey{Int(5)}) || !combined.Contains(RowKey{Int(25)}) {
		t.Fatal("OR should match either range")
	}
	if combined.Contains(RowKey{Int(15)}) {
		t.Fatal("OR should not match the gap between ranges")
	}
}
