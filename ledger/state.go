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
	"github.com/sirius-social/go-microledger/crypto"
	"github.com/sirius-social/go-microledger/protocol"
)

// State is a snapshot of a microledger's counters and root hashes. Replicas
// exchange states during consensus and compare them by Hash.
type State struct {
	Name                string `json:"name"`
	SeqNo               uint64 `json:"seq_no"`
	Size                uint64 `json:"size"`
	UncommittedSize     uint64 `json:"uncommitted_size"`
	RootHash            string `json:"root_hash"`
	UncommittedRootHash string `json:"uncommitted_root_hash"`
}

// Hash returns the hex digest of the canonical encoding of the state. It is
// an equality check between replicas, not a security boundary; integrity
// comes from the signatures over it.
func (s State) Hash() string {
	return crypto.MD5Hex(protocol.EncodeJSON(s))
}

// AuditProof carries the audit path for one committed transaction, with
// every digest in the base58 form root hashes travel in.
type AuditProof struct {
	RootHash   string   `json:"rootHash"`
	LedgerSize uint64   `json:"ledgerSize"`
	AuditPath  []string `json:"auditPath"`
}
