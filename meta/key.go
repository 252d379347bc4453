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
	"fmt"

	"github.com/cubeql/qexec/date"
)

// Scalar is a single sort-key component. It holds exactly one
// of the listed fields at a time, selected by Kind.
type Scalar struct {
	Kind ScalarKind
	I    int64
	F    float64
	S    string
	T    date.Time
}

// ScalarKind distinguishes which field of a Scalar is live.
type ScalarKind int8

const (
	KindNull ScalarKind = iota
	KindInt
	KindFloat
	KindString
	KindTimestamp
)

func Int(i int64) Scalar          { return Scalar{Kind: KindInt, I: i} }
func Float(f float64) Scalar      { return Scalar{Kind: KindFloat, F: f} }
func String(s string) Scalar      { return Scalar{Kind: KindString, S: s} }
func Timestamp(t date.Time) Scalar { return Scalar{Kind: KindTimestamp, T: t} }

// Compare returns <0, 0, >0 as a is less than, equal to, or
// greater than b. Scalars of differing kinds compare by Kind
// so that a RowKey tuple comparison is always total.
func (a Scalar) Compare(b Scalar) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case KindNull:
		return 0
	case KindInt:
		switch {
		case a.I < b.I:
			return -1
		case a.I > b.I:
			return 1
		default:
			return 0
		}
	case KindFloat:
		switch {
		case a.F < b.F:
			return -1
		case a.F > b.F:
			return 1
		default:
			return 0
		}
	case KindString:
		switch {
		case a.S < b.S:
			return -1
		case a.S > b.S:
			return 1
		default:
			return 0
		}
	case KindTimestamp:
		if a.T.Before(b.T) {
			return -1
		}
		if a.T.After(b.T) {
			return 1
		}
		return 0
	}
	return 0
}

func (a Scalar) String() string {
	switch a.Kind {
	case KindInt:
		return fmt.Sprintf("%d", a.I)
	case KindFloat:
		return fmt.Sprintf("%g", a.F)
	case KindString:
		return a.S
	case KindTimestamp:
		return a.T.String()
	default:
		return "null"
	}
}

// RowKey is a tuple of Scalars: the prefix of an index's
// sort-key columns used for partition key ranges and for
// FilterByKeyRange comparisons (§4.3, §4.4).
type RowKey []Scalar

// Compare performs a lexicographic comparison of two RowKeys.
// Shorter keys compare as less than longer keys they are a
// prefix of.
func (k RowKey) Compare(other RowKey) int {
	n := len(k)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if c := k[i].Compare(other[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(k) < len(other):
		return -1
	case len(k) > len(other):
		return 1
	default:
		return 0
	}
}

// Prefix returns the first n components of k (or all of k, if
// k is shorter than n).
func (k RowKey) Prefix(n int) RowKey {
	if n >= len(k) {
		return k
	}
	return k[:n]
}
