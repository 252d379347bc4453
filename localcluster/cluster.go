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

// Package localcluster is an in-process meta.Cluster: every
// worker ordinal is served by a goroutine-free call straight
// back into package executor, so a single binary (or a unit
// test) can exercise the router/worker split end to end without
// a real network transport. Grounded on the teacher's
// cmd/snellerd direct-exec test harness, which runs a query
// in-process the same way when -no-network is set.
package localcluster

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/cubeql/qexec/arrowutil"
	"github.com/cubeql/qexec/assign"
	"github.com/cubeql/qexec/batch"
	"github.com/cubeql/qexec/config"
	"github.com/cubeql/qexec/errs"
	"github.com/cubeql/qexec/executor"
	"github.com/cubeql/qexec/meta"
	"github.com/cubeql/qexec/operator"
	"github.com/cubeql/qexec/plan"
)

// Cluster is a meta.Cluster backed by a single in-process
// plan.TableSource shared by every worker ordinal. It is meant
// for tests and single-binary deployments; a networked cluster
// would swap RunSelect/RunSelectStream for an RPC client but
// keep the same PickWorkerByIDs/PickWorkerByPartitions hashing.
type Cluster struct {
	cfg  *config.Cluster
	src  plan.TableSource
	mem  memory.Allocator
	ectx executor.ExecutionContext
}

// New returns a Cluster that serves every worker ordinal out of
// src, reporting the topology in cfg.
func New(cfg *config.Cluster, src plan.TableSource) *Cluster {
	return &Cluster{
		cfg:  cfg,
		src:  src,
		mem:  memory.DefaultAllocator,
		ectx: executor.NewExecutionContext(""),
	}
}

// Config implements meta.Cluster.
func (c *Cluster) Config() meta.ConfigObj { return c.cfg }

// PickWorkerByIDs implements meta.Cluster.
func (c *Cluster) PickWorkerByIDs(id string) int {
	return assign.PickWorkerByIDs(id, len(c.cfg.Nodes()))
}

// PickWorkerByPartitions implements meta.Cluster.
func (c *Cluster) PickWorkerByPartitions(id string) int {
	return assign.Worker([]byte(id), len(c.cfg.Nodes()))
}

func (c *Cluster) planner() plan.WorkerPlanner {
	return func(ctx context.Context, sp meta.SerializedPlan) (operator.ExecutionPlan, error) {
		return plan.Resolve(sp, c.src)
	}
}

// RunSelect implements meta.Cluster: it runs sp against the
// in-process table source and concatenates every emitted batch
// into the single blob RunSelect promises.
func (c *Cluster) RunSelect(ctx context.Context, worker int, sp meta.SerializedPlan) ([]byte, error) {
	if worker < 0 || worker >= len(c.cfg.Nodes()) {
		return nil, errs.New(errs.Plan, "localcluster: worker ordinal out of range")
	}
	var recs []arrow.Record
	var schema *arrow.Schema
	err := executor.Worker(ctx, c.ectx, sp, c.planner(), func(rec arrow.Record) error {
		schema = rec.Schema()
		rec, err := arrowutil.CopyAll(c.mem, rec)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if schema == nil {
		return nil, nil
	}
	out, err := arrowutil.Concat(c.mem, schema, recs)
	if err != nil {
		return nil, err
	}
	return batch.Encode(out)
}

// RunSelectStream implements meta.Cluster: it runs sp and frames
// each emitted batch with the same big-endian length prefix
// package clustersend's streamIter reads.
func (c *Cluster) RunSelectStream(ctx context.Context, worker int, sp meta.SerializedPlan) (io.ReadCloser, error) {
	if worker < 0 || worker >= len(c.cfg.Nodes()) {
		return nil, errs.New(errs.Plan, "localcluster: worker ordinal out of range")
	}
	var buf bytes.Buffer
	err := executor.Worker(ctx, c.ectx, sp, c.planner(), func(rec arrow.Record) error {
		return writeFramedBatch(&buf, rec)
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(&buf), nil
}

// writeFramedBatch matches clustersend's wire framing: a
// big-endian uint32 byte length followed by that many bytes of a
// package batch blob.
func writeFramedBatch(w io.Writer, rec arrow.Record) error {
	blob, err := batch.Encode(rec)
	if err != nil {
		return err
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(blob)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errs.Wrap(errs.Io, "localcluster: write stream batch header", err)
	}
	if _, err := w.Write(blob); err != nil {
		return errs.Wrap(errs.Io, "localcluster: write stream batch body", err)
	}
	return nil
}
