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

package arrowutil

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"

	"github.com/cubeql/qexec/date"
	"github.com/cubeql/qexec/meta"
)

// ScalarAt extracts row r of column col as a meta.Scalar, for
// use building RowKey tuples out of a record's sort-key columns
// (FilterByKeyRange, LastRowByUniqueKey).
func ScalarAt(col arrow.Array, r int) (meta.Scalar, error) {
	if col.IsNull(r) {
		return meta.Scalar{}, nil
	}
	switch c := col.(type) {
	case *array.Int8:
		return meta.Int(int64(c.Value(r))), nil
	case *array.Int16:
		return meta.Int(int64(c.Value(r))), nil
	case *array.Int32:
		return meta.Int(int64(c.Value(r))), nil
	case *array.Int64:
		return meta.Int(c.Value(r)), nil
	case *array.Uint8:
		return meta.Int(int64(c.Value(r))), nil
	case *array.Uint16:
		return meta.Int(int64(c.Value(r))), nil
	case *array.Uint32:
		return meta.Int(int64(c.Value(r))), nil
	case *array.Uint64:
		return meta.Int(int64(c.Value(r))), nil
	case *array.Float32:
		return meta.Float(float64(c.Value(r))), nil
	case *array.Float64:
		return meta.Float(c.Value(r)), nil
	case *array.String:
		return meta.String(c.Value(r)), nil
	case *array.LargeString:
		return meta.String(c.Value(r)), nil
	case *array.Binary:
		return meta.String(string(c.Value(r))), nil
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		t, err := timestampToDate(c.Value(r), unit)
		if err != nil {
			return meta.Scalar{}, err
		}
		return meta.Timestamp(t), nil
	default:
		return meta.Scalar{}, fmt.Errorf("arrowutil: unsupported key column type %s", col.DataType())
	}
}

func timestampToDate(v arrow.Timestamp, unit arrow.TimeUnit) (date.Time, error) {
	switch unit {
	case arrow.Second:
		return date.Unix(int64(v), 0), nil
	case arrow.Millisecond:
		return date.UnixMicro(int64(v) * 1000), nil
	case arrow.Microsecond:
		return date.UnixMicro(int64(v)), nil
	case arrow.Nanosecond:
		return date.Unix(0, int64(v)), nil
	default:
		return date.Time{}, fmt.Errorf("arrowutil: unsupported timestamp unit %v", unit)
	}
}

// RowKeyAt builds a meta.RowKey from the values of cols at row r.
func RowKeyAt(cols []arrow.Array, r int) (meta.RowKey, error) {
	key := make(meta.RowKey, len(cols))
	for i, col := range cols {
		s, err := ScalarAt(col, r)
		if err != nil {
			return nil, err
		}
		key[i] = s
	}
	return key, nil
}
