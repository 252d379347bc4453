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

func TestScalarCompare(t *testing.T) {
	cases := []struct {
		a, b Scalar
		want int
	}{
		{Int(1), Int(2), -1},
		{Int(2), Int(1), 1},
		{Int(5), Int(5), 0},
		{String("a"), String("b"), -1},
		{Float(1.5), Float(1.5), 0},
		{Int(1), String("a"), -1}, // differing kinds order by Kind
	}
	for _, c := range cases {
		got := c.a.Compare(c.b)
		if sign(got) != sign(c.want) {
			t.Errorf("%v.Compare(%v) = %d, want sign %d", c.a, c.b, got, c.want)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func TestRowKeyCompare(t *testing.T) {
	a := RowKey{Int(1), String("x")}
	b := RowKey{Int(1), String("y")}
	if a.Compare(b) >= 0 {
		t.Fatal("expected a < b")
	}
	short := RowKey{Int(1)}
	if short.Compare(a) >= 0 {
		t.Fatal("expected shorter prefix to compare less")
	}
	if a.Compare(short) <= 0 {
		t.Fatal("expected longer key to compare greater than its prefix")
	}
}

func TestRowKeyPrefix(t *testing.T) {
	k := RowKey{Int(1), Int(2), Int(3)}
	p := k.Prefix(2)
	if len(p) != 2 || p[0].I != 1 || p[1].I != 2 {
		t.Fatalf("unexpected prefix: %v", p)
	}
	full := k.Prefix(10)
	if len(full) != 3 {
		t.Fatalf("expected Prefix(n) with n > len to return full key, got %v", full)
	}
}
