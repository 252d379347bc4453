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

package cube

import (
	"fmt"
	"sort"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/cubeql/qexec/errs"
	"github.com/cubeql/qexec/expr"
	"github.com/cubeql/qexec/meta"
	"github.com/cubeql/qexec/operator"
)

// BuildScan assembles the physical operator tree reading one
// cube-table scan (§4.3): every partition in snapshot that has a
// matching entry in assigned, each wrapped in its assigned key
// range filter, unioned across chunks and partitions, and
// deduplicated by unique key if the table's index declares one.
//
// projection names the table columns the caller wants back, in
// the order it wants them in; filters are combined with AND and
// carried on the returned plan for informational predicate
// pushdown (combining them into a row-level residual evaluator
// is out of scope here: FilterByKeyRange's key-range pruning is
// the only predicate actually enforced by this tree, matching
// the teacher's own sort-key-only pushdown in plan/filter.go).
func BuildScan(table Table, projection []string, batchSize int, filters []expr.Node, snapshot meta.IndexSnapshot, assigned []meta.AssignedPartition) (operator.ExecutionPlan, error) {
	idx := snapshot.Index
	hasUnique := len(idx.UniqueKey) > 0

	// step 1: expand projection for uniqueness
	augmented := append([]string{}, projection...)
	if hasUnique {
		for _, c := range idx.UniqueKey {
			augmented = appendUnique(augmented, c.Name)
		}
		augmented = appendUnique(augmented, idx.Sequence.Name)
	}

	// step 2: translate to index-columns, then sort ascending by name
	sortedProj := append([]string{}, augmented...)
	sort.Strings(sortedProj)
	readIndices := make([]int, len(sortedProj))
	for i, name := range sortedProj {
		pos, err := fieldIndex(table.Schema, name)
		if err != nil {
			return nil, err
		}
		readIndices[i] = pos
	}
	readSchema := subsetSchema(table.Schema, readIndices)

	// step 3: combine filters into one residual predicate, carried
	// on each scan leaf for optional pushdown by the ColumnarFileScan
	predicate := combineFilters(filters)

	sortKeyCols, err := columnPositions(readSchema, names(idx.SortKey()))
	if err != nil {
		return nil, err
	}

	// step 4: per-partition snapshot
	byID := make(map[string]meta.AssignedPartition, len(assigned))
	for _, a := range assigned {
		byID[a.Snapshot.Partition.ID] = a
	}

	var children []operator.ExecutionPlan
	for _, p := range snapshot.Partitions {
		a, ok := byID[p.ID]
		if !ok {
			continue
		}
		sub, err := partitionSubplan(&table, readSchema, sortKeyCols, batchSize, p, a.Snapshot.Filter, predicate)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			continue
		}
		children = append(children, sub)
	}

	// step 5: restore projection order to the augmented set
	augIndices, err := columnPositions(readSchema, augmented)
	if err != nil {
		return nil, err
	}
	for i, c := range children {
		proj, err := operator.NewProjection(c, augIndices)
		if err != nil {
			return nil, err
		}
		children[i] = proj
	}
	augSchema := subsetSchema(readSchema, augIndices)

	// step 7: empty case
	if len(children) == 0 {
		finalSchema, err := finalOutputSchema(table.Schema, projection)
		if err != nil {
			return nil, err
		}
		return operator.NewEmpty(finalSchema), nil
	}

	// step 6: unify
	if hasUnique {
		sortCols, err := columnPositions(augSchema, names(idx.SortKey()))
		if err != nil {
			return nil, err
		}
		merged, err := operator.NewMergeSort(children, sortCols, batchSize)
		if err != nil {
			return nil, err
		}
		uniqueCols, err := columnPositions(augSchema, names(idx.UniqueKey))
		if err != nil {
			return nil, err
		}
		seqCol, err := fieldIndex(augSchema, idx.Sequence.Name)
		if err != nil {
			return nil, err
		}
		deduped := operator.NewLastRowByUniqueKey(merged, uniqueCols, seqCol, batchSize)
		finalIndices, err := columnPositions(augSchema, projection)
		if err != nil {
			return nil, err
		}
		return operator.NewProjection(deduped, finalIndices)
	}

	if len(snapshot.SortOn) > 0 {
		sortCols, err := columnPositions(augSchema, names(snapshot.SortOn))
		if err != nil {
			return nil, err
		}
		return operator.NewMergeSort(children, sortCols, batchSize)
	}

	return operator.NewMerge(children)
}

// partitionSubplan builds one partition's sub-plan: the parquet
// file (if any chunks are on disk) and every chunk, each wrapped
// in the partition's assigned key-range filter. Every chunk is
// individually sorted on the index's sort key, so multiple arms
// are combined with MergeSort (not a plain Merge) to keep the
// partition's output globally sorted for step 6's unification.
func partitionSubplan(table *Table, readSchema *arrow.Schema, keyCols []int, batchSize int, p meta.Partition, filter meta.RowFilter, predicate expr.Node) (operator.ExecutionPlan, error) {
	var arms []operator.ExecutionPlan
	for _, c := range p.Chunks {
		var leaf operator.ExecutionPlan
		if c.InMemory {
			batches, ok := table.MemChunks[c.Path]
			if !ok {
				return nil, errs.Wrap(errs.Injection, "no in-memory batches registered for chunk", fmt.Errorf("path=%s", c.Path))
			}
			leaf = operator.NewMemorySource(readSchema, batches, operator.Hints{Sorted: true})
		} else {
			leaf = operator.NewParquetScanNode(table.Scan, c.Path, readSchema, batchSize, operator.Hints{Sorted: true}).WithPredicate(predicate)
		}
		arms = append(arms, operator.NewFilterByKeyRange(leaf, keyCols, filter))
	}
	if len(arms) == 0 {
		return nil, nil
	}
	if len(arms) == 1 {
		return arms[0], nil
	}
	return operator.NewMergeSort(arms, keyCols, batchSize)
}

func finalOutputSchema(tableSchema *arrow.Schema, projection []string) (*arrow.Schema, error) {
	indices, err := columnPositions(tableSchema, projection)
	if err != nil {
		return nil, err
	}
	return subsetSchema(tableSchema, indices), nil
}

func combineFilters(filters []expr.Node) expr.Node {
	if len(filters) == 0 {
		return nil
	}
	if len(filters) == 1 {
		return filters[0]
	}
	return &expr.Logical{Op: expr.And, Terms: filters}
}

func columnPositions(schema *arrow.Schema, colNames []string) ([]int, error) {
	out := make([]int, len(colNames))
	for i, name := range colNames {
		idx, err := fieldIndex(schema, name)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

func names(refs []meta.ColumnRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Name
	}
	return out
}

func appendUnique(list []string, name string) []string {
	for _, e := range list {
		if e == name {
			return list
		}
	}
	return append(list, name)
}
