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

// Package regroup implements the batch regrouper (§4.1, C2): it
// re-slices a stream of batches into pieces of at most maxRows
// rows each, without ever merging rows across two input batches,
// and forces a physical buffer copy at every slice boundary so
// that a subsequent Encode does not serialize a source batch's
// whole underlying buffer. Grounded on the teacher's
// vm.NewStreamTable chunk-boundary discipline (vm/table.go) and
// the row-selection helpers in
// other_examples/polarsignals-arcticdb__table.go.
package regroup

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/cubeql/qexec/arrowutil"
)

// Regroup slices records into batches of at most maxRows rows
// each, preserving column order, types, and nullability, and
// never combining rows from two different input records.
func Regroup(records []arrow.Record, maxRows int) ([]arrow.Record, error) {
	if maxRows < 1 {
		return nil, fmt.Errorf("regroup: max_rows must be >= 1, got %d", maxRows)
	}
	var out []arrow.Record
	for _, rec := range records {
		pieces, err := splitOne(rec, maxRows)
		if err != nil {
			return nil, err
		}
		out = append(out, pieces...)
	}
	return out, nil
}

func splitOne(rec arrow.Record, maxRows int) ([]arrow.Record, error) {
	n := int(rec.NumRows())
	if n == 0 {
		return nil, nil
	}
	var out []arrow.Record
	for start := 0; start < n; start += maxRows {
		end := start + maxRows
		if end > n {
			end = n
		}
		rows := make([]int, end-start)
		for i := range rows {
			rows[i] = start + i
		}
		piece, err := arrowutil.SelectRows(memory.DefaultAllocator, rec, rows)
		if err != nil {
			return nil, fmt.Errorf("regroup: %w", err)
		}
		out = append(out, piece)
	}
	return out, nil
}
