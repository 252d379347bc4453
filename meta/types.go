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

// Package meta models the domain data: indexes, partitions,
// chunks, and the multi-partition tree described in §3.

// ColumnRef names a column by its position in an index's sort
// key. Operators translate a user-visible column name to the
// ColumnRef of the underlying chunk storage before pushing
// filters or projections into a scan (§4.3).
type ColumnRef struct {
	Name string
	Pos  int
}

// Chunk is one ordered run of rows within a Partition. Chunks
// within a Partition do not overlap in key range with their
// siblings at the same tree depth; see Index.Sorted.
type Chunk struct {
	// Path identifies the chunk's backing object (a parquet
	// file path, or an opaque injected-batch key for tests).
	Path string
	// Min and Max bound the chunk's sort key, inclusive.
	Min, Max RowKey
	// Rows is the number of rows in the chunk, used for
	// planning MaxBatchRows-sized reads.
	Rows int
	// SizeBytes is the on-disk footprint of the chunk, used
	// for work estimation during assignment.
	SizeBytes int64
	// InMemory marks a chunk whose rows are caller-injected
	// batches (keyed by Path) rather than a file to scan.
	InMemory bool
}

// Partition is the unit of work assignment (§4.4): a list of
// Chunks, plus an optional MultiID identifying which row of a
// MultiPartition tree (§3) this partition belongs to.
type Partition struct {
	ID     string
	Chunks []Chunk
	// MultiID is non-empty when this partition is one leaf of
	// a multi-partition tree used to co-locate joined tables;
	// partitions sharing a MultiID are always assigned to the
	// same worker.
	MultiID string
}

// TotalRows sums the row counts of the partition's chunks.
func (p Partition) TotalRows() int {
	n := 0
	for _, c := range p.Chunks {
		n += c.Rows
	}
	return n
}

// TotalSize sums the byte sizes of the partition's chunks.
func (p Partition) TotalSize() int64 {
	var n int64
	for _, c := range p.Chunks {
		n += c.SizeBytes
	}
	return n
}

// Index is the top-level metadata object for one table: its
// sort key (used for key-range pruning and last-write-wins
// dedup ordering), its unique key and sequence column (used for
// LastRowByUniqueKey), and its partitions.
type Index struct {
	Table string
	// Sorted is the list of columns every chunk is sorted by,
	// in order.
	Sorted []ColumnRef
	// KeyLen is the declared sort-key prefix length K: the
	// first KeyLen columns of Sorted form the lexicographic
	// key that FilterByKeyRange and partition key ranges are
	// expressed over.
	KeyLen int
	// UniqueKey names the columns identifying a logical row
	// for last-write-wins deduplication.
	UniqueKey []ColumnRef
	// Sequence names the monotonic column used to break ties
	// between rows sharing a UniqueKey: the highest Sequence
	// wins.
	Sequence ColumnRef
	Partitions []Partition
}

// SortKey returns the first KeyLen columns of Sorted.
func (idx Index) SortKey() []ColumnRef {
	n := idx.KeyLen
	if n > len(idx.Sorted) {
		n = len(idx.Sorted)
	}
	return idx.Sorted[:n]
}

// MultiPartition is one node of the tree described in §3: it
// groups a set of per-table Partitions (identified by MultiID)
// so that joined rows living in different tables, but assigned
// to the same key range, land on the same worker.
type MultiPartition struct {
	ID     string
	Parent string // empty at the tree root
}

// IndexSnapshot pins an Index to an immutable point in time: the
// exact partition and chunk list a query plan was built against,
// so that concurrent compaction or ingest cannot change the
// answer mid-query.
type IndexSnapshot struct {
	Index      Index
	Partitions []Partition
	Multi      []MultiPartition
	// SortOn, when non-empty, overrides the index's own sort
	// key as the column set CubeTableExec must guarantee
	// ascending output order on.
	SortOn []ColumnRef
}

// PartitionSnapshot is the per-partition slice of an
// IndexSnapshot sent to a single worker: just the chunks that
// worker must read, plus the row filter narrowing which rows of
// those chunks are wanted (§4.4).
type PartitionSnapshot struct {
	Partition Partition
	Filter    RowFilter
}

// AssignedPartition pairs a PartitionSnapshot with the ordinal
// of the worker it was assigned to, as produced by package
// assign and consumed by package cube and package clustersend.
type AssignedPartition struct {
	Snapshot PartitionSnapshot
	Worker   int
}
