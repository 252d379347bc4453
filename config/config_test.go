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

package config

import (
	"testing"

	"github.com/cubeql/qexec/meta"
)

func TestParseImplementsConfigObj(t *testing.T) {
	c, err := Parse([]byte("nodes:\n  - worker-0:8080\n  - worker-1:8080\n"))
	if err != nil {
		t.Fatal(err)
	}
	var _ meta.ConfigObj = c
	if len(c.Nodes()) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(c.Nodes()))
	}
	if c.Nodes()[0] != "worker-0:8080" {
		t.Fatalf("unexpected first node: %s", c.Nodes()[0])
	}
}

func TestParseRejectsEmptyNodeList(t *testing.T) {
	_, err := Parse([]byte("nodes: []\n"))
	if err == nil {
		t.Fatal("expected an error for an empty node list")
	}
}
