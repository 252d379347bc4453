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

// Package executor drives one request end to end on the router
// or the worker side (§4.6, C6): it builds an ExecutionContext,
// invokes the caller-supplied planner, executes the resulting
// tree, and logs timing and failures the way the teacher's
// cmd/snellerd request handlers do (structured key=value lines
// via the standard log package).
package executor

import (
	"github.com/cubeql/qexec/cgroup"
)

// DefaultBatchRows is the row count a worker packs into one
// output batch absent any other constraint (§4.6, §5).
const DefaultBatchRows = 4096

// DefaultConcurrency is the number of goroutines an
// ExecutionContext runs one request's leaf scans with; further
// parallelism across requests is left to the process's own
// worker pool, not to this package (§5).
const DefaultConcurrency = 1

// ExecutionContext bounds the resources one request's execution
// is allowed: the batch size its leaves should target, and how
// many of those leaves may run concurrently.
type ExecutionContext struct {
	BatchRows   int
	Concurrency int
}

// NewExecutionContext returns the default context, optionally
// narrowed to the CPU quota reported by cg ("" to skip cgroup
// probing entirely, e.g. in tests or non-Linux hosts).
func NewExecutionContext(cg cgroup.Dir) ExecutionContext {
	ctx := ExecutionContext{BatchRows: DefaultBatchRows, Concurrency: DefaultConcurrency}
	if cg.IsZero() {
		return ctx
	}
	if n, err := cg.CPUQuota(); err == nil && n > 0 && n < ctx.Concurrency {
		ctx.Concurrency = n
	}
	return ctx
}
