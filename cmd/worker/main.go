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

// Command worker runs a single SerializedPlan read from stdin
// against a demo catalog and writes its result as an Arrow IPC
// stream on stdout, mirroring the teacher's cmd/snellerd "worker"
// sub-command at a much smaller scale (a standalone process
// instead of a tenant-sandboxed child, no control socket).
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/ipc"

	"github.com/cubeql/qexec/catalog"
	"github.com/cubeql/qexec/cgroup"
	"github.com/cubeql/qexec/executor"
	"github.com/cubeql/qexec/meta"
	"github.com/cubeql/qexec/operator"
	"github.com/cubeql/qexec/plan"
	"github.com/cubeql/qexec/pqscan"
)

func main() {
	cmd := flag.NewFlagSet("worker", flag.ExitOnError)
	catalogPath := cmd.String("catalog", "", "path to the table catalog YAML file")
	cgroupDir := cmd.String("cgroup", "", "cgroup2 directory to read a CPU quota from")
	if cmd.Parse(os.Args[1:]) != nil {
		os.Exit(1)
	}
	if *catalogPath == "" {
		log.Fatal("level=ERROR component=worker msg=\"-catalog is required\"")
	}

	cat, err := catalog.Load(*catalogPath, pqscan.New())
	if err != nil {
		log.Fatalf("level=ERROR component=worker msg=%q err=%q", "loading catalog", err)
	}

	sp, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Fatalf("level=ERROR component=worker msg=%q err=%q", "reading plan from stdin", err)
	}

	planner := func(ctx context.Context, sp meta.SerializedPlan) (operator.ExecutionPlan, error) {
		return plan.Resolve(sp, cat)
	}

	var writer *ipc.Writer
	emit := func(rec arrow.Record) error {
		if writer == nil {
			writer = ipc.NewWriter(os.Stdout, ipc.WithSchema(rec.Schema()))
		}
		return writer.Write(rec)
	}

	ectx := executor.NewExecutionContext(cgroup.Dir(*cgroupDir))
	err = executor.Worker(context.Background(), ectx, meta.SerializedPlan(sp), planner, emit)
	if writer != nil {
		if cerr := writer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		log.Fatalf("level=ERROR component=worker msg=%q err=%q", "executing plan", err)
	}
}
