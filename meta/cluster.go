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

import (
	"context"
	"io"
)

// ConfigObj is the cluster's view of its own topology: the
// ordered list of worker node addresses that package assign
// hashes partitions onto, and the replica count used to spread
// multi-partition groups (§6.1).
type ConfigObj interface {
	// Nodes returns the stable, ordered list of worker
	// addresses. The ordering must not change between calls
	// within a single query: package assign's hashing is only
	// deterministic against a fixed node list.
	Nodes() []string
}

// SerializedPlan is an opaque, already-encoded physical plan
// ready to ship to a worker: the wire form produced by package
// plan's ion encoder (§6.3).
type SerializedPlan []byte

// Cluster abstracts the transport between a router and its
// workers (§6.1, §6): picking which worker owns a partition or a
// multi-partition id, and running a serialized plan on a given
// worker, either buffered or streamed.
type Cluster interface {
	// Config returns the cluster's current topology.
	Config() ConfigObj

	// PickWorkerByIDs deterministically maps a multi-partition
	// id to a worker ordinal in [0, len(Config().Nodes())).
	PickWorkerByIDs(id string) int

	// PickWorkerByPartitions deterministically maps an
	// ordinary partition id to a worker ordinal.
	PickWorkerByPartitions(id string) int

	// RunSelect executes plan on the worker at ordinal and
	// returns its single encoded result batch (§6.3, batch
	// package wire format). Used when the router needs the
	// worker's complete output before proceeding.
	RunSelect(ctx context.Context, worker int, plan SerializedPlan) ([]byte, error)

	// RunSelectStream executes plan on the worker at ordinal
	// and streams back a sequence of encoded batches through
	// the returned io.ReadCloser, one Arrow IPC stream per
	// batch framed by package batch's codec.
	RunSelectStream(ctx context.Context, worker int, plan SerializedPlan) (io.ReadCloser, error)
}
