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

// Command router drives a single table scan end to end against a
// demo catalog and a localcluster.Cluster, writing the result as
// an Arrow IPC stream on stdout. It stands in for the teacher's
// cmd/snellerd "daemon" sub-command's REST query path, collapsed
// to one CLI invocation since this repo has no HTTP-facing
// surface of its own (§1, Non-goals).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/ipc"

	"github.com/cubeql/qexec/catalog"
	"github.com/cubeql/qexec/cgroup"
	"github.com/cubeql/qexec/clustersend"
	"github.com/cubeql/qexec/config"
	"github.com/cubeql/qexec/errs"
	"github.com/cubeql/qexec/executor"
	"github.com/cubeql/qexec/expr"
	"github.com/cubeql/qexec/localcluster"
	"github.com/cubeql/qexec/operator"
	"github.com/cubeql/qexec/plan"
	"github.com/cubeql/qexec/pqscan"
)

func main() {
	cmd := flag.NewFlagSet("router", flag.ExitOnError)
	catalogPath := cmd.String("catalog", "", "path to the table catalog YAML file")
	confPath := cmd.String("conf", "", "path to the cluster topology YAML file")
	table := cmd.String("table", "", "table name to scan")
	projection := cmd.String("projection", "", "comma-separated column list")
	cgroupDir := cmd.String("cgroup", "", "cgroup2 directory to read a CPU quota from")
	if cmd.Parse(os.Args[1:]) != nil {
		os.Exit(1)
	}
	if *catalogPath == "" || *confPath == "" || *table == "" {
		log.Fatal("level=ERROR component=router msg=\"-catalog, -conf, and -table are required\"")
	}

	cat, err := catalog.Load(*catalogPath, pqscan.New())
	if err != nil {
		log.Fatalf("level=ERROR component=router msg=%q err=%q", "loading catalog", err)
	}
	cfg, err := config.Load(*confPath)
	if err != nil {
		log.Fatalf("level=ERROR component=router msg=%q err=%q", "loading cluster config", err)
	}
	cluster := localcluster.New(cfg, cat)

	cols := splitProjection(*projection)

	planner := func(ctx context.Context, table string, projection []string, filters []expr.Node) (operator.ExecutionPlan, error) {
		return buildPlan(table, projection, cluster, cat)
	}

	var writer *ipc.Writer
	emit := func(rec arrow.Record) error {
		if writer == nil {
			writer = ipc.NewWriter(os.Stdout, ipc.WithSchema(rec.Schema()))
		}
		return writer.Write(rec)
	}

	ectx := executor.NewExecutionContext(cgroup.Dir(*cgroupDir))
	err = executor.Router(context.Background(), ectx, *table, cols, nil, planner, emit)
	if writer != nil {
		if cerr := writer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		log.Fatalf("level=ERROR component=router msg=%q err=%q", "executing plan", err)
	}
}

func splitProjection(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// buildPlan assigns every partition of table to worker 0 (the
// demo cluster's only worker) and wraps that assignment in a
// clustersend.Exec, the router-side fan-out node every scan
// bottoms out in (§4.5).
func buildPlan(table string, projection []string, cluster *localcluster.Cluster, cat *catalog.Catalog) (operator.ExecutionPlan, error) {
	tbl, snapshot, err := cat.Table(table)
	if err != nil {
		return nil, err
	}
	if len(projection) == 0 {
		for _, p := range snapshot.Index.Sorted {
			projection = append(projection, p.Name)
		}
	}
	fields := make([]arrow.Field, len(projection))
	for i, name := range projection {
		idx := tbl.Schema.FieldIndices(name)
		if len(idx) != 1 {
			return nil, errs.New(errs.Plan, fmt.Sprintf("router: column %q not found in table %q", name, table))
		}
		fields[i] = tbl.Schema.Field(idx[0])
	}
	schema := arrow.NewSchema(fields, nil)

	assignments := make([]clustersend.WorkerAssignment, 0, 1)
	var filters []clustersend.PartitionFilter
	for _, p := range snapshot.Partitions {
		filters = append(filters, clustersend.PartitionFilter{PartitionID: p.ID})
	}
	if len(filters) > 0 {
		assignments = append(assignments, clustersend.WorkerAssignment{Worker: 0, Filters: filters})
	}

	binder := plan.Template{Table: table, Projection: projection, BatchSize: executor.DefaultBatchRows}
	return clustersend.NewExec(schema, assignments, binder, cluster, nil, false), nil
}
