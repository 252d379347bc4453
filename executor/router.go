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

package executor

import (
	"context"
	"log"
	"time"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/cubeql/qexec/expr"
	"github.com/cubeql/qexec/plan"
)

// Router runs one router-side request: it builds the logical
// scan via planner (which, per §4.5, bottoms out in a
// clustersend.Exec fanning the request across workers), then
// drains every output partition through emit.
//
// Logging matches Worker's: WARN past 200ms, ERROR on failure,
// both carrying the plan dump via fmt.Stringer.
func Router(ctx context.Context, ectx ExecutionContext, table string, projection []string, filters []expr.Node, planner plan.RouterPlanner, emit func(arrow.Record) error) error {
	start := time.Now()
	tree, err := planner(ctx, table, projection, filters)
	if err != nil {
		log.Printf("level=ERROR component=router msg=%q table=%s err=%q", "planner failed", table, err)
		return err
	}
	err = runPlan(ctx, tree, ectx.BatchRows, emit)
	elapsed := time.Since(start)
	logOutcome("router", elapsed, err, tree)
	return err
}
