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

// Package errs defines the typed error kinds raised by the query
// execution core, per the error handling design in SPEC_FULL.md §7.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the families described in §7.
type Kind int

const (
	_ Kind = iota
	// Plan is raised for missing worker markers, a mixed
	// ordinary/multi partition regime, or a schema column
	// that cannot be found by name.
	Plan
	// Io is raised for local parquet read failures or
	// remote transport failures.
	Io
	// Data is raised when decoding a 0- or >=2-batch blob,
	// or converting an unsupported columnar type to a row value.
	Data
	// Injection is raised when a worker is missing a
	// required remote-to-local path mapping or in-memory
	// chunk batches.
	Injection
)

func (k Kind) String() string {
	switch k {
	case Plan:
		return "PlanError"
	case Io:
		return "IoError"
	case Data:
		return "DataError"
	case Injection:
		return "Injection"
	default:
		return "UnknownError"
	}
}

// Error is a typed error that carries a Kind alongside a message
// and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind,
// so callers can write errors.Is(err, errs.Plan) if they
// construct a sentinel with that Kind and no message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
	}
	return false
}

// New constructs an *Error of the given kind.
func New(k Kind, msg string) error {
	return &Error{Kind: k, Msg: msg}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(k Kind, msg string, cause error) error {
	return &Error{Kind: k, Msg: msg, Err: cause}
}

// NoWorkerMarker is returned by executor.Worker when the physical
// plan has no worker-marker sub-plan.
var NoWorkerMarker = New(Plan, "no-worker-marker")

// MixedPartitionRegime is returned by assign.DetectRegime when some
// partitions carry a multi-partition id and others do not.
var MixedPartitionRegime = New(Plan, "mixed ordinary/multi partition regime")
