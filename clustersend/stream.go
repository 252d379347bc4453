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

package clustersend

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/cubeql/qexec/batch"
	"github.com/cubeql/qexec/errs"
)

// writeStreamBatch frames one batch for RunSelectStream's wire
// transport: a big-endian uint32 byte length followed by that
// many bytes of a package batch blob (schema + one record batch +
// EOS). This keeps every batch self-contained the same way a
// buffered blob is, so a worker reading ahead can never
// mis-frame one IPC stream's EOS against the next stream's bytes.
func writeStreamBatch(w io.Writer, rec arrow.Record) error {
	blob, err := batch.Encode(rec)
	if err != nil {
		return err
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(blob)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errs.Wrap(errs.Io, "write stream batch header", err)
	}
	if _, err := w.Write(blob); err != nil {
		return errs.Wrap(errs.Io, "write stream batch body", err)
	}
	return nil
}

// streamIter is the RecordIter side of writeStreamBatch: it reads
// one length-prefixed blob per Next call and decodes it.
type streamIter struct {
	r   io.ReadCloser
	err error
}

func newStreamIter(r io.ReadCloser) *streamIter {
	return &streamIter{r: r}
}

func (it *streamIter) Next(ctx context.Context) (arrow.Record, error) {
	if it.err != nil {
		return nil, it.err
	}
	var hdr [4]byte
	if _, err := io.ReadFull(it.r, hdr[:]); err != nil {
		it.r.Close()
		if err == io.EOF {
			it.err = io.EOF
			return nil, io.EOF
		}
		it.err = errs.Wrap(errs.Io, "read stream batch header", err)
		return nil, it.err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	blob := make([]byte, n)
	if _, err := io.ReadFull(it.r, blob); err != nil {
		it.r.Close()
		it.err = errs.Wrap(errs.Io, "read stream batch body", err)
		return nil, it.err
	}
	rec, err := batch.Decode(blob)
	if err != nil {
		it.r.Close()
		it.err = err
		return nil, err
	}
	return rec, nil
}
