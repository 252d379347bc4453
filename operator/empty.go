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
	"io"

	"github.com/apache/arrow/go/v17/arrow"
)

// Empty is a zero-row leaf, used as the fallback scan when a
// BuildScan's filters prune every partition (§4.3's empty-schema
// fallback case).
type Empty struct {
	schema *arrow.Schema
}

// NewEmpty builds an Empty node with the given schema.
func NewEmpty(schema *arrow.Schema) *Empty {
	return &Empty{schema: schema}
}

func (e *Empty) Schema() *arrow.Schema              { return e.schema }
func (e *Empty) OutputPartitioning() Partitioning   { return Partitioning{Count: 1} }
func (e *Empty) Children() []ExecutionPlan          { return nil }
func (e *Empty) OutputHints() Hints                 { return Hints{Sorted: true, Deduplicated: true} }

func (e *Empty) WithNewChildren(children []ExecutionPlan) (ExecutionPlan, error) {
	if err := checkChildren(0, children); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Empty) Execute(ctx context.Context, partition int) (RecordIter, error) {
	return emptyIter{}, nil
}

type emptyIter struct{}

func (emptyIter) Next(ctx context.Context) (arrow.Record, error) {
	return nil, io.EOF
}
