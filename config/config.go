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

// Package config implements meta.ConfigObj as a YAML document,
// grounded on the teacher's YAML-based cluster.conf convention
// (sigs.k8s.io/yaml, which round-trips through encoding/json so
// the struct tags are the usual `json:"..."` ones).
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Cluster is the on-disk shape of a cluster's topology
// configuration: the ordered list of worker node addresses that
// package assign hashes against.
type Cluster struct {
	NodeAddrs []string `json:"nodes"`
}

// Nodes implements meta.ConfigObj.
func (c *Cluster) Nodes() []string { return c.NodeAddrs }

// Load reads and parses a cluster config YAML document from path.
func Load(path string) (*Cluster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a cluster config YAML document.
func Parse(data []byte) (*Cluster, error) {
	var c Cluster
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parsing cluster config: %w", err)
	}
	if len(c.NodeAddrs) == 0 {
		return nil, fmt.Errorf("config: cluster config declares no nodes")
	}
	return &c, nil
}
