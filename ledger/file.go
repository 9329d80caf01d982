// Copyright (C) 2020-2026 Sirius Social, Inc.
// This file is part of go-microledger
//
// go-microledger is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-microledger is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-microledger.  If not, see <https://www.gnu.org/licenses/>.

package ledger

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/sirius-social/go-microledger/protocol"
)

// logMagic opens every ledger file. The version byte allows a future frame
// layout change without a rename.
var logMagic = []byte{'m', 'l', 'o', 'g', 1}

// maxFrameLen bounds a single batch frame. A frame longer than this is
// treated as corruption rather than allocated.
const maxFrameLen = 64 << 20

// logFile is the durable form of a committed ledger: the magic header
// followed by frames, each one commit batch. A frame is a 4-byte big-endian
// length, the canonical JSON array of the batch's transactions, and a
// 4-byte big-endian CRC-32 (IEEE) of that array. Appends are fsynced before
// the batch is promoted in memory, and a torn final frame is truncated away
// on open, so the file never presents a half-committed batch.
type logFile struct {
	f *os.File
}

// createLogFile creates the file at path with the magic header. It fails if
// the file already exists.
func createLogFile(path string) (*logFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(logMagic); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, err
	}
	return &logFile{f: f}, nil
}

// openLogFile opens an existing ledger file, replays every intact frame
// into batches of transactions, and truncates any torn tail.
func openLogFile(path string) (*logFile, [][]Transaction, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, nil, err
	}

	header := make([]byte, len(logMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("ledger file %s: header: %w", path, err)
	}
	if string(header) != string(logMagic) {
		f.Close()
		return nil, nil, fmt.Errorf("ledger file %s: bad magic", path)
	}

	var batches [][]Transaction
	good := int64(len(logMagic))
	for {
		batch, next, err := readFrame(f, good)
		if err == io.EOF {
			break
		}
		if err != nil {
			// A torn or corrupt tail frame is the expected aftermath of a
			// crash mid-append. Everything before it is intact.
			break
		}
		batches = append(batches, batch)
		good = next
	}

	if err := f.Truncate(good); err != nil {
		f.Close()
		return nil, nil, err
	}
	if _, err := f.Seek(good, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, err
	}
	return &logFile{f: f}, batches, nil
}

// readFrame reads one frame starting at off and returns the decoded batch
// and the offset just past the frame. io.EOF means a clean end of file.
func readFrame(f *os.File, off int64) ([]Transaction, int64, error) {
	var lenBuf [4]byte
	if _, err := f.ReadAt(lenBuf[:], off); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, 0, io.EOF
		}
		return nil, 0, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > maxFrameLen {
		return nil, 0, fmt.Errorf("frame length %d out of range", n)
	}

	body := make([]byte, n+4)
	if _, err := f.ReadAt(body, off+4); err != nil {
		return nil, 0, err
	}
	payload := body[:n]
	want := binary.BigEndian.Uint32(body[n:])
	if crc32.ChecksumIEEE(payload) != want {
		return nil, 0, fmt.Errorf("frame checksum mismatch at offset %d", off)
	}

	var raw []map[string]interface{}
	if err := protocol.DecodeJSON(payload, &raw); err != nil {
		return nil, 0, fmt.Errorf("frame decode at offset %d: %w", off, err)
	}
	batch := make([]Transaction, len(raw))
	for i, m := range raw {
		batch[i] = Transaction(m)
	}
	return batch, off + 4 + int64(n) + 4, nil
}

// appendBatch writes one batch as a single frame and fsyncs. The batch is
// durable when appendBatch returns nil.
func (lf *logFile) appendBatch(batch []Transaction) error {
	arr := make([]map[string]interface{}, len(batch))
	for i, txn := range batch {
		arr[i] = map[string]interface{}(txn)
	}
	payload := protocol.EncodeJSON(arr)

	frame := make([]byte, 4+len(payload)+4)
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)
	binary.BigEndian.PutUint32(frame[4+len(payload):], crc32.ChecksumIEEE(payload))

	if _, err := lf.f.Write(frame); err != nil {
		return err
	}
	return lf.f.Sync()
}

func (lf *logFile) close() error {
	return lf.f.Close()
}
