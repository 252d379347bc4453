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

// Package catalog loads the small YAML table description
// cmd/router and cmd/worker both need to stand a demo cluster up
// against real parquet files, in the same spirit as the teacher's
// db package describing a tenant's tables, generalized down to
// the handful of fields package cube needs: schema, sort/unique
// key, and the partition/chunk list a table's on-disk layout is
// split into.
package catalog

import (
	"fmt"
	"os"
	"strconv"

	"github.com/apache/arrow/go/v17/arrow"
	"sigs.k8s.io/yaml"

	"github.com/cubeql/qexec/cube"
	"github.com/cubeql/qexec/meta"
	"github.com/cubeql/qexec/operator"
)

type columnSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type chunkSpec struct {
	Path     string   `json:"path"`
	Rows     int      `json:"rows"`
	Min      []string `json:"min"`
	Max      []string `json:"max"`
	InMemory bool     `json:"in_memory"`
}

type partitionSpec struct {
	ID     string      `json:"id"`
	Chunks []chunkSpec `json:"chunks"`
}

type tableSpec struct {
	Table      string          `json:"table"`
	Columns    []columnSpec    `json:"columns"`
	Sorted     []string        `json:"sorted"`
	KeyLen     int             `json:"key_len"`
	UniqueKey  []string        `json:"unique_key"`
	Sequence   string          `json:"sequence"`
	Partitions []partitionSpec `json:"partitions"`
}

// Catalog is a fixed single-table plan.TableSource loaded from a
// demo YAML document: a real deployment would replace this with
// a client for the teacher's own metadata store, swapping none
// of the cube.Table/meta.IndexSnapshot shapes it produces.
type Catalog struct {
	table    cube.Table
	snapshot meta.IndexSnapshot
	name     string
}

// Table implements plan.TableSource.
func (c *Catalog) Table(name string) (cube.Table, meta.IndexSnapshot, error) {
	if name != c.name {
		return cube.Table{}, meta.IndexSnapshot{}, fmt.Errorf("catalog: unknown table %q", name)
	}
	return c.table, c.snapshot, nil
}

// Snapshot returns the catalog's single IndexSnapshot, used by
// callers that need to assign partitions to workers themselves
// (cmd/router) rather than through a worker's TableSource lookup.
func (c *Catalog) Snapshot() meta.IndexSnapshot { return c.snapshot }

// Load reads and parses a catalog YAML document. No chunk is
// opened here: scan is stored on the returned table and used
// only when a chunk is later read.
func Load(path string, scan operator.ColumnarFileScan) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: reading %s: %w", path, err)
	}
	var spec tableSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("catalog: parsing %s: %w", path, err)
	}
	return build(spec, scan)
}

func columnType(kind string) (arrow.DataType, error) {
	switch kind {
	case "int64":
		return arrow.PrimitiveTypes.Int64, nil
	case "float64":
		return arrow.PrimitiveTypes.Float64, nil
	case "string":
		return arrow.BinaryTypes.String, nil
	case "bool":
		return arrow.FixedWidthTypes.Boolean, nil
	default:
		return nil, fmt.Errorf("catalog: unsupported column type %q", kind)
	}
}

func colRefs(schema *arrow.Schema, names []string) ([]meta.ColumnRef, error) {
	out := make([]meta.ColumnRef, len(names))
	for i, name := range names {
		idx := schema.FieldIndices(name)
		if len(idx) != 1 {
			return nil, fmt.Errorf("catalog: column %q not found", name)
		}
		out[i] = meta.ColumnRef{Name: name, Pos: i}
	}
	return out, nil
}

// rowKey parses a chunk's min/max bound, given as decimal
// strings in the YAML document, typing each value against the
// corresponding prefix column of sorted.
func rowKey(schema *arrow.Schema, sorted []meta.ColumnRef, values []string) (meta.RowKey, error) {
	key := make(meta.RowKey, len(values))
	for i, v := range values {
		if i >= len(sorted) {
			return nil, fmt.Errorf("catalog: key value %d has no corresponding sort column", i)
		}
		idx := schema.FieldIndices(sorted[i].Name)
		if len(idx) != 1 {
			return nil, fmt.Errorf("catalog: sort column %q not found", sorted[i].Name)
		}
		switch schema.Field(idx[0]).Type.ID() {
		case arrow.INT64:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("catalog: parsing int key value %q: %w", v, err)
			}
			key[i] = meta.Int(n)
		case arrow.FLOAT64:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("catalog: parsing float key value %q: %w", v, err)
			}
			key[i] = meta.Float(f)
		default:
			key[i] = meta.String(v)
		}
	}
	return key, nil
}

func build(spec tableSpec, scan operator.ColumnarFileScan) (*Catalog, error) {
	fields := make([]arrow.Field, len(spec.Columns))
	for i, c := range spec.Columns {
		dt, err := columnType(c.Type)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: c.Name, Type: dt}
	}
	schema := arrow.NewSchema(fields, nil)

	sorted, err := colRefs(schema, spec.Sorted)
	if err != nil {
		return nil, err
	}
	unique, err := colRefs(schema, spec.UniqueKey)
	if err != nil {
		return nil, err
	}
	var seq meta.ColumnRef
	if spec.Sequence != "" {
		refs, err := colRefs(schema, []string{spec.Sequence})
		if err != nil {
			return nil, err
		}
		seq = refs[0]
	}

	partitions := make([]meta.Partition, len(spec.Partitions))
	for i, p := range spec.Partitions {
		chunks := make([]meta.Chunk, len(p.Chunks))
		for j, c := range p.Chunks {
			min, err := rowKey(schema, sorted, c.Min)
			if err != nil {
				return nil, err
			}
			max, err := rowKey(schema, sorted, c.Max)
			if err != nil {
				return nil, err
			}
			chunks[j] = meta.Chunk{
				Path:     c.Path,
				Rows:     c.Rows,
				Min:      min,
				Max:      max,
				InMemory: c.InMemory,
			}
		}
		partitions[i] = meta.Partition{ID: p.ID, Chunks: chunks}
	}

	idx := meta.Index{
		Table:     spec.Table,
		Sorted:    sorted,
		KeyLen:    spec.KeyLen,
		UniqueKey: unique,
		Sequence:  seq,
	}
	snapshot := meta.IndexSnapshot{Index: idx, Partitions: partitions}

	return &Catalog{
		table: cube.Table{
			Schema:    schema,
			Scan:      scan,
			MemChunks: map[string][]arrow.Record{},
		},
		snapshot: snapshot,
		name:     spec.Table,
	}, nil
}
