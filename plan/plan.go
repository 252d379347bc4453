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

// Package plan implements the wire form of a query's logical
// description (§6.3): a table name, its projection and residual
// filters, and the per-partition row filters a worker should
// apply, ion-encoded the same way the teacher encodes any other
// tagged structured value (see ion.Struct/ion.Datum), generalized
// from row data to plan metadata.
//
// The optimizer/planner that decides which table, projection, and
// filters to run is an external collaborator (§1); this package
// only defines the RouterPlanner/WorkerPlanner seams it is invoked
// through and the Descriptor wire shape that crosses the
// router/worker boundary.
package plan

import (
	"context"
	"fmt"

	"github.com/cubeql/qexec/errs"
	"github.com/cubeql/qexec/expr"
	"github.com/cubeql/qexec/ion"
	"github.com/cubeql/qexec/meta"
	"github.com/cubeql/qexec/operator"
)

// RouterPlanner builds the router-side logical plan for a table
// scan: the thing an external optimizer lowers a query into
// before package assign divides it across workers.
type RouterPlanner func(ctx context.Context, table string, projection []string, filters []expr.Node) (operator.ExecutionPlan, error)

// WorkerPlanner reconstructs the physical plan a worker should
// execute from the SerializedPlan it was sent.
type WorkerPlanner func(ctx context.Context, sp meta.SerializedPlan) (operator.ExecutionPlan, error)

// PartitionFilter pairs a partition id with the row filter a
// worker executing this plan should apply to it.
type PartitionFilter struct {
	ID     string
	Filter meta.RowFilter
}

// Descriptor is the decoded form of a SerializedPlan: enough
// information for a worker to rebuild a cube.BuildScan call
// against its own local table metadata.
type Descriptor struct {
	Table      string
	Projection []string
	// Filters carries the stringified residual predicate for
	// logging/debugging; it is not re-parsed by this package,
	// matching cube.BuildScan's own informational-pushdown-only
	// treatment of filters.
	Filters    []string
	BatchSize  int
	Partitions []PartitionFilter
}

// String implements fmt.Stringer so executor can log a
// Descriptor the same way the teacher logs a plan.Tree at
// DEBUG/ERROR (§4.6, §7).
func (d Descriptor) String() string {
	return fmt.Sprintf("table=%s projection=%v filters=%v batch_size=%d partitions=%d",
		d.Table, d.Projection, d.Filters, d.BatchSize, len(d.Partitions))
}

const (
	symTable      = "table"
	symProjection = "projection"
	symFilters    = "filters"
	symBatchSize  = "batch_size"
	symPartitions = "partitions"
	symID         = "id"
	symFilter     = "filter"
	symStart      = "start"
	symEnd        = "end"
)

// Encode serializes d as an ion structure.
func Encode(d Descriptor) (meta.SerializedPlan, error) {
	var st ion.Symtab
	var buf ion.Buffer
	datum := descriptorDatum(&st, d)
	st.Marshal(&buf, true)
	datum.Encode(&buf, &st)
	return meta.SerializedPlan(buf.Bytes()), nil
}

// Decode parses a SerializedPlan produced by Encode.
func Decode(sp meta.SerializedPlan) (Descriptor, error) {
	var st ion.Symtab
	rest, err := st.Unmarshal([]byte(sp))
	if err != nil {
		return Descriptor{}, errs.Wrap(errs.Data, "plan: decode symbol table", err)
	}
	d, _, err := ion.ReadDatum(&st, rest)
	if err != nil {
		return Descriptor{}, errs.Wrap(errs.Data, "plan: decode descriptor", err)
	}
	return datumDescriptor(d)
}

func descriptorDatum(st *ion.Symtab, d Descriptor) ion.Datum {
	projItems := make([]ion.Datum, len(d.Projection))
	for i, p := range d.Projection {
		projItems[i] = ion.String(p)
	}
	filterItems := make([]ion.Datum, len(d.Filters))
	for i, f := range d.Filters {
		filterItems[i] = ion.String(f)
	}
	partItems := make([]ion.Datum, len(d.Partitions))
	for i, p := range d.Partitions {
		partItems[i] = partitionFilterDatum(st, p)
	}
	return ion.NewStruct(st, []ion.Field{
		{Label: symTable, Value: ion.String(d.Table)},
		{Label: symProjection, Value: ion.NewList(st, projItems).Datum()},
		{Label: symFilters, Value: ion.NewList(st, filterItems).Datum()},
		{Label: symBatchSize, Value: ion.Int(int64(d.BatchSize))},
		{Label: symPartitions, Value: ion.NewList(st, partItems).Datum()},
	}).Datum()
}

func datumDescriptor(d ion.Datum) (Descriptor, error) {
	s, ok := d.Struct()
	if !ok {
		return Descriptor{}, errs.New(errs.Data, "plan: expected a struct at top level")
	}
	var out Descriptor
	if v, ok := s.FieldByName(symTable); ok {
		out.Table, _ = v.Value.String()
	}
	if v, ok := s.FieldByName(symProjection); ok {
		list, _ := v.Value.List()
		_ = list.Each(func(item ion.Datum) bool {
			str, _ := item.String()
			out.Projection = append(out.Projection, str)
			return true
		})
	}
	if v, ok := s.FieldByName(symFilters); ok {
		list, _ := v.Value.List()
		_ = list.Each(func(item ion.Datum) bool {
			str, _ := item.String()
			out.Filters = append(out.Filters, str)
			return true
		})
	}
	if v, ok := s.FieldByName(symBatchSize); ok {
		n, _ := v.Value.Int()
		out.BatchSize = int(n)
	}
	if v, ok := s.FieldByName(symPartitions); ok {
		list, _ := v.Value.List()
		var err error
		_ = list.Each(func(item ion.Datum) bool {
			var pf PartitionFilter
			pf, err = datumPartitionFilter(item)
			if err != nil {
				return false
			}
			out.Partitions = append(out.Partitions, pf)
			return true
		})
		if err != nil {
			return Descriptor{}, err
		}
	}
	return out, nil
}

func partitionFilterDatum(st *ion.Symtab, p PartitionFilter) ion.Datum {
	rangeItems := make([]ion.Datum, len(p.Filter.Ranges))
	for i, r := range p.Filter.Ranges {
		rangeItems[i] = rowRangeDatum(st, r)
	}
	return ion.NewStruct(st, []ion.Field{
		{Label: symID, Value: ion.String(p.ID)},
		{Label: symFilter, Value: ion.NewList(st, rangeItems).Datum()},
	}).Datum()
}

func datumPartitionFilter(d ion.Datum) (PartitionFilter, error) {
	s, ok := d.Struct()
	if !ok {
		return PartitionFilter{}, errs.New(errs.Data, "plan: expected a partition filter struct")
	}
	var out PartitionFilter
	if v, ok := s.FieldByName(symID); ok {
		out.ID, _ = v.Value.String()
	}
	if v, ok := s.FieldByName(symFilter); ok {
		list, _ := v.Value.List()
		var err error
		_ = list.Each(func(item ion.Datum) bool {
			var r meta.RowRange
			r, err = datumRowRange(item)
			if err != nil {
				return false
			}
			out.Filter.Ranges = append(out.Filter.Ranges, r)
			return true
		})
		if err != nil {
			return PartitionFilter{}, err
		}
	}
	return out, nil
}

func rowRangeDatum(st *ion.Symtab, r meta.RowRange) ion.Datum {
	startItems := make([]ion.Datum, len(r.Start))
	for i, sc := range r.Start {
		startItems[i] = scalarDatum(sc)
	}
	endItems := make([]ion.Datum, len(r.End))
	for i, sc := range r.End {
		endItems[i] = scalarDatum(sc)
	}
	return ion.NewStruct(st, []ion.Field{
		{Label: symStart, Value: ion.NewList(st, startItems).Datum()},
		{Label: symEnd, Value: ion.NewList(st, endItems).Datum()},
	}).Datum()
}

func datumRowRange(d ion.Datum) (meta.RowRange, error) {
	s, ok := d.Struct()
	if !ok {
		return meta.RowRange{}, errs.New(errs.Data, "plan: expected a row range struct")
	}
	var out meta.RowRange
	if v, ok := s.FieldByName(symStart); ok {
		list, _ := v.Value.List()
		_ = list.Each(func(item ion.Datum) bool {
			out.Start = append(out.Start, datumScalar(item))
			return true
		})
	}
	if v, ok := s.FieldByName(symEnd); ok {
		list, _ := v.Value.List()
		_ = list.Each(func(item ion.Datum) bool {
			out.End = append(out.End, datumScalar(item))
			return true
		})
	}
	return out, nil
}

func scalarDatum(sc meta.Scalar) ion.Datum {
	switch sc.Kind {
	case meta.KindInt:
		return ion.Int(sc.I)
	case meta.KindFloat:
		return ion.Float(sc.F)
	case meta.KindString:
		return ion.String(sc.S)
	case meta.KindTimestamp:
		return ion.Int(sc.T.UnixNano())
	default:
		return ion.Null
	}
}

// datumScalar decodes a scalar encoded by scalarDatum. The
// timestamp/int ambiguity (both encode as an ion int) is
// resolved by the caller re-typing the column if it knows the
// schema; callers that only need ordering (key-range comparison)
// can treat a decoded timestamp as its UnixNano int directly.
func datumScalar(d ion.Datum) meta.Scalar {
	if n, ok := d.Int(); ok {
		return meta.Int(n)
	}
	if f, ok := d.Float(); ok {
		return meta.Float(f)
	}
	if s, ok := d.String(); ok {
		return meta.String(s)
	}
	return meta.Scalar{}
}
