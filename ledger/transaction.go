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

// Package ledger implements microledgers: append-only transaction logs with
// a committed partition, an uncommitted staging area, and RFC 6962 Merkle
// root hashes over the canonical transaction encodings.
package ledger

import (
	"fmt"
	"time"

	"github.com/sirius-social/go-microledger/crypto/merklearray"
	"github.com/sirius-social/go-microledger/protocol"
)

// Attribute names the ledger reserves inside a transaction.
const (
	MetadataAttr = "txnMetadata"
	SeqNoAttr    = "seqNo"
	TimeAttr     = "txnTime"
)

// Transaction is an arbitrary JSON object. The ledger owns the txnMetadata
// attribute; everything else is application payload carried opaquely.
type Transaction map[string]interface{}

// NewTransaction validates that payload does not already carry ledger
// metadata and returns it as a Transaction. An empty txnMetadata object is
// tolerated because that is how transactions arrive after a decode.
func NewTransaction(payload map[string]interface{}) (Transaction, error) {
	if meta, ok := payload[MetadataAttr]; ok {
		m, isMap := meta.(map[string]interface{})
		if !isMap || len(m) != 0 {
			return nil, fmt.Errorf("transaction already carries %s", MetadataAttr)
		}
	}
	return Transaction(payload), nil
}

// Clone deep-copies the transaction through a canonical encode/decode
// cycle, which also normalizes nested containers to the generic map form.
func (t Transaction) Clone() Transaction {
	var out map[string]interface{}
	if err := protocol.DecodeJSON(protocol.EncodeJSON(map[string]interface{}(t)), &out); err != nil {
		// Encoding produced the buffer being decoded, so this cannot fail
		// for any value that was encodable in the first place.
		panic(fmt.Sprintf("ledger: clone round-trip: %v", err))
	}
	return Transaction(out)
}

// Encode returns the canonical JSON encoding of the transaction, the bytes
// that are hashed into the Merkle tree and written to disk.
func (t Transaction) Encode() []byte {
	return protocol.EncodeJSON(map[string]interface{}(t))
}

// SeqNo returns the sequence number assigned by the ledger, or 0 if the
// transaction has not been stamped yet. Numbers survive a decode as any of
// the integer flavors the codec may produce.
func (t Transaction) SeqNo() uint64 {
	meta, ok := t[MetadataAttr].(map[string]interface{})
	if !ok {
		return 0
	}
	switch n := meta[SeqNoAttr].(type) {
	case uint64:
		return n
	case int64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	case float64:
		if n < 0 {
			return 0
		}
		return uint64(n)
	default:
		return 0
	}
}

// Time returns the txnTime stamp, or the empty string if absent.
func (t Transaction) Time() string {
	meta, ok := t[MetadataAttr].(map[string]interface{})
	if !ok {
		return ""
	}
	s, _ := meta[TimeAttr].(string)
	return s
}

// stamp writes the ledger-owned metadata into the transaction in place.
// txnTime is only written when non-zero; genesis replay keeps whatever the
// original stamp was.
func (t Transaction) stamp(seqNo uint64, at time.Time) {
	meta, ok := t[MetadataAttr].(map[string]interface{})
	if !ok {
		meta = make(map[string]interface{})
		t[MetadataAttr] = meta
	}
	meta[SeqNoAttr] = seqNo
	if !at.IsZero() {
		meta[TimeAttr] = at.UTC().Format(time.RFC3339)
	}
}

// encodedLeaves returns the canonical encodings of txns in tree order.
func encodedLeaves(txns []Transaction) [][]byte {
	leaves := make([][]byte, len(txns))
	for i, txn := range txns {
		leaves[i] = txn.Encode()
	}
	return leaves
}

// treeRoot computes the Merkle tree head over the canonical encodings of
// txns.
func treeRoot(txns []Transaction) string {
	return merklearray.Root(encodedLeaves(txns)).String()
}
