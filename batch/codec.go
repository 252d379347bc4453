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

// Package batch implements the wire codec for a single columnar
// batch (§4.2, C1): encoding wraps Arrow's own IPC stream
// framing so that one blob is one self-contained stream carrying
// exactly one record batch and its schema, and decoding enforces
// that contract.
package batch

import (
	"bytes"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/cubeql/qexec/errs"
)

// Encode serializes rec as one self-contained Arrow IPC stream:
// a schema message, exactly one record batch message, and EOS.
func Encode(rec arrow.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()))
	if err := w.Write(rec); err != nil {
		return nil, errs.Wrap(errs.Io, "encode batch", err)
	}
	if err := w.Close(); err != nil {
		return nil, errs.Wrap(errs.Io, "close batch writer", err)
	}
	return buf.Bytes(), nil
}

// Decode parses blob and returns its single record batch. It
// fails with a DataError if blob contains zero or more than one
// batch.
func Decode(blob []byte) (arrow.Record, error) {
	r, err := ipc.NewReader(bytes.NewReader(blob), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, errs.Wrap(errs.Data, "open batch stream", err)
	}
	defer r.Release()

	if !r.Next() {
		if err := r.Err(); err != nil && err != io.EOF {
			return nil, errs.Wrap(errs.Data, "read batch", err)
		}
		return nil, errs.New(errs.Data, "decode: empty blob (zero batches)")
	}
	rec := r.Record()
	rec.Retain()

	if r.Next() {
		rec.Release()
		return nil, errs.New(errs.Data, "decode: blob contains more than one batch")
	}
	if err := r.Err(); err != nil && err != io.EOF {
		rec.Release()
		return nil, errs.Wrap(errs.Data, "read batch", err)
	}
	return rec, nil
}

// EncodeAll serializes records in order, one blob per record
// (§4.2's "one blob per batch").
func EncodeAll(records []arrow.Record) ([][]byte, error) {
	out := make([][]byte, len(records))
	for i, rec := range records {
		blob, err := Encode(rec)
		if err != nil {
			return nil, err
		}
		out[i] = blob
	}
	return out, nil
}

// DecodeAll decodes each blob independently, in order.
func DecodeAll(blobs [][]byte) ([]arrow.Record, error) {
	out := make([]arrow.Record, len(blobs))
	for i, b := range blobs {
		rec, err := Decode(b)
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}
