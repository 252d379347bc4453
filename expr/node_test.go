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

package expr

import "testing"

func TestToString(t *testing.T) {
	e := &Logical{
		Op: And,
		Terms: []Node{
			&Compare{Op: Ge, Left: Ident("ts"), Right: Int(100)},
			&Compare{Op: Lt, Left: Ident("ts"), Right: Int(200)},
		},
	}
	got := ToString(e)
	want := "(ts >= 100 AND ts < 200)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

type identCollector struct {
	found []string
}

func (c *identCollector) Visit(n Node) Visitor {
	if id, ok := n.(Ident); ok {
		c.found = append(c.found, string(id))
	}
	return c
}

func TestWalkVisitsLeaves(t *testing.T) {
	e := &Not{Inner: &Compare{Op: Eq, Left: Ident("x"), Right: String("y")}}
	c := &identCollector{}
	Walk(c, e)
	if len(c.found) != 1 || c.found[0] != "x" {
		t.Fatalf("expected [x], got %v", c.found)
	}
}

func TestFlatPath(t *testing.T) {
	name, ok := FlatPath(Ident("customer_id"))
	if !ok || name != "customer_id" {
		t.Fatalf("FlatPath failed: %q %v", name, ok)
	}
	if _, ok := FlatPath(Int(1)); ok {
		t.Fatal("FlatPath should reject non-path node")
	}
}
