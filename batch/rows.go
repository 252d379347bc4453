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

package batch

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/decimal128"

	"github.com/cubeql/qexec/errs"
)

// ValueKind tags which field of a Value is live, mirroring the
// §4.2 columnar→row type-mapping table.
type ValueKind int8

const (
	Null ValueKind = iota
	Int
	Float
	Decimal
	Timestamp
	String
	Bytes
	Boolean
)

// Value is one row/column cell of a DataFrame.
type Value struct {
	Kind      ValueKind
	I         int64
	F         float64
	S         string
	B         []byte
	Bool      bool
	DecScale  int32
	TimeNanos int64
}

// DataFrame is the untyped row-oriented view of a batch produced
// by ToRows, for consumers that do not speak Arrow directly.
type DataFrame struct {
	Columns []string
	Rows    [][]Value
}

// ToRows converts rec to a DataFrame per the §4.2 type-mapping
// table. Unsupported columnar types are a programmer error and
// return a DataError rather than attempting a lossy conversion.
func ToRows(rec arrow.Record) (DataFrame, error) {
	schema := rec.Schema()
	df := DataFrame{
		Columns: make([]string, len(schema.Fields())),
		Rows:    make([][]Value, rec.NumRows()),
	}
	for i, f := range schema.Fields() {
		df.Columns[i] = f.Name
	}
	ncols := int(rec.NumCols())
	nrows := int(rec.NumRows())
	for r := 0; r < nrows; r++ {
		df.Rows[r] = make([]Value, ncols)
	}
	for c := 0; c < ncols; c++ {
		col := rec.Column(c)
		for r := 0; r < nrows; r++ {
			v, err := valueAt(col, r)
			if err != nil {
				return DataFrame{}, err
			}
			df.Rows[r][c] = v
		}
	}
	return df, nil
}

func valueAt(col arrow.Array, r int) (Value, error) {
	if col.IsNull(r) {
		return Value{Kind: Null}, nil
	}
	switch c := col.(type) {
	case *array.Int8:
		return Value{Kind: Int, I: int64(c.Value(r))}, nil
	case *array.Int16:
		return Value{Kind: Int, I: int64(c.Value(r))}, nil
	case *array.Int32:
		return Value{Kind: Int, I: int64(c.Value(r))}, nil
	case *array.Int64:
		return Value{Kind: Int, I: c.Value(r)}, nil
	case *array.Uint8:
		return Value{Kind: Int, I: int64(c.Value(r))}, nil
	case *array.Uint16:
		return Value{Kind: Int, I: int64(c.Value(r))}, nil
	case *array.Uint32:
		return Value{Kind: Int, I: int64(c.Value(r))}, nil
	case *array.Uint64:
		return Value{Kind: Int, I: int64(c.Value(r))}, nil
	case *array.Float16:
		return Value{Kind: Float, F: float64(c.Value(r).Float32())}, nil
	case *array.Float64:
		return Value{Kind: Float, F: c.Value(r)}, nil
	case *array.Decimal128:
		dt := c.DataType().(*arrow.Decimal128Type)
		return Value{Kind: Decimal, DecScale: dt.Scale, I: decimalLow(c.Value(r))}, nil
	case *array.Timestamp:
		dt := c.DataType().(*arrow.TimestampType)
		ns, err := timestampNanos(int64(c.Value(r)), dt.Unit)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: Timestamp, TimeNanos: ns}, nil
	case *array.String:
		return Value{Kind: String, S: c.Value(r)}, nil
	case *array.LargeString:
		return Value{Kind: String, S: c.Value(r)}, nil
	case *array.Binary:
		return Value{Kind: Bytes, B: c.Value(r)}, nil
	case *array.Boolean:
		return Value{Kind: Boolean, Bool: c.Value(r)}, nil
	default:
		return Value{}, errs.New(errs.Data, fmt.Sprintf("unsupported columnar type in row conversion: %s", col.DataType()))
	}
}

// decimalLow returns the low 64 bits of a Decimal128, which is
// sufficient for the row model's precision=18 representation
// (§4.2's Decimal(scale, precision=18)).
func decimalLow(d decimal128.Num) int64 {
	return int64(d.LowBits())
}

// timestampNanos converts a raw Arrow timestamp value to
// nanoseconds since the epoch, per §4.2's µs→ns and ns→ns rules.
// Second- and millisecond-resolution timestamps are scaled the
// same way for consumers that declare those units.
func timestampNanos(v int64, unit arrow.TimeUnit) (int64, error) {
	switch unit {
	case arrow.Second:
		return v * 1_000_000_000, nil
	case arrow.Millisecond:
		return v * 1_000_000, nil
	case arrow.Microsecond:
		return v * 1_000, nil
	case arrow.Nanosecond:
		return v, nil
	default:
		return 0, errs.New(errs.Data, fmt.Sprintf("unsupported timestamp unit %v", unit))
	}
}
