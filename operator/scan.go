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

package operator

import (
	"context"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/cubeql/qexec/expr"
)

// ColumnarFileScan is the external capability a scan leaf reads
// through: something that can open one chunk file and iterate
// its rows as Arrow batches, honoring a column projection (§6).
// Open takes no key-range argument; key-range pruning happens
// downstream in FilterByKeyRange. The reference
// implementation lives in package pqscan; tests may supply their
// own in-memory implementation.
type ColumnarFileScan interface {
	// Open begins reading path, returning only the named
	// columns in schema order, and reading at most batchRows
	// rows per returned batch.
	Open(ctx context.Context, path string, schema *arrow.Schema, batchRows int) (RecordIter, error)
}

// ParquetScanNode is a leaf node reading one chunk file through
// a ColumnarFileScan (§4.3's per-chunk scan wrapping step).
// Despite its name it is generic over any ColumnarFileScan
// implementation, not just the reference parquet-go-backed one.
type ParquetScanNode struct {
	Path      string
	BatchRows int
	// Predicate is the combined residual filter expression for
	// this scan (§4.3 step 3), carried for a ColumnarFileScan
	// implementation that wants to push it into its own row-group
	// pruning; the reference operator tree does not evaluate it
	// itself (key-range pruning is FilterByKeyRange's job).
	Predicate expr.Node
	scan      ColumnarFileScan
	schema    *arrow.Schema
	hints     Hints
}

// NewParquetScanNode builds a leaf scanning path through scan,
// producing schema-shaped batches of at most batchRows rows.
func NewParquetScanNode(scan ColumnarFileScan, path string, schema *arrow.Schema, batchRows int, hints Hints) *ParquetScanNode {
	return &ParquetScanNode{Path: path, BatchRows: batchRows, scan: scan, schema: schema, hints: hints}
}

// WithPredicate returns a copy of p carrying predicate for a
// ColumnarFileScan implementation to optionally push down.
func (p *ParquetScanNode) WithPredicate(predicate expr.Node) *ParquetScanNode {
	cp := *p
	cp.Predicate = predicate
	return &cp
}

func (p *ParquetScanNode) Schema() *arrow.Schema            { return p.schema }
func (p *ParquetScanNode) OutputPartitioning() Partitioning { return Partitioning{Count: 1} }
func (p *ParquetScanNode) Children() []ExecutionPlan        { return nil }
func (p *ParquetScanNode) OutputHints() Hints               { return p.hints }

func (p *ParquetScanNode) WithNewChildren(children []ExecutionPlan) (ExecutionPlan, error) {
	if err := checkChildren(0, children); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ParquetScanNode) Execute(ctx context.Context, partition int) (RecordIter, error) {
	if partition != 0 {
		return emptyIter{}, nil
	}
	return p.scan.Open(ctx, p.Path, p.schema, p.BatchRows)
}
