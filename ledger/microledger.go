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
	"fmt"
	"time"

	"github.com/algorand/go-deadlock"

	"github.com/sirius-social/go-microledger/crypto/merklearray"
)

// Microledger is one append-only log. Committed transactions are durable in
// the backing file; staged transactions live only in memory until
// CommitStaged promotes them or DiscardStaged drops them.
type Microledger struct {
	mu deadlock.Mutex

	name      string
	file      *logFile
	committed []Transaction
	staged    []Transaction
}

// Reset initializes an empty ledger from a genesis block. Transactions that
// already carry sequence numbers must form the dense run 1..n; unstamped
// transactions are assigned numbers in order. Mixing stamped and unstamped
// genesis entries is rejected.
func (m *Microledger) Reset(genesis []Transaction, at time.Time) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.committed) > 0 {
		return State{}, InvalidGenesisError{Reason: fmt.Sprintf("ledger %q is not empty", m.name)}
	}
	if len(genesis) == 0 {
		return State{}, InvalidGenesisError{Reason: "genesis block is empty"}
	}

	stamped := genesis[0].SeqNo() != 0
	batch := make([]Transaction, len(genesis))
	for i, txn := range genesis {
		c := txn.Clone()
		want := uint64(i + 1)
		switch {
		case c.SeqNo() == 0 && !stamped:
			c.stamp(want, at)
		case c.SeqNo() == want && stamped:
			// Replayed genesis keeps its original stamps.
		default:
			return State{}, InvalidGenesisError{
				Reason: fmt.Sprintf("transaction %d carries seqNo %d, want %d", i, c.SeqNo(), want),
			}
		}
		batch[i] = c
	}

	if err := m.file.appendBatch(batch); err != nil {
		return State{}, fmt.Errorf("ledger %q: persist genesis: %w", m.name, err)
	}
	m.committed = batch
	m.staged = nil
	return m.snapshotLocked(), nil
}

// Stage appends txns to the uncommitted partition. Each transaction is
// cloned, stamped with the next dense sequence number and, when at is
// non-zero, with at as its txnTime; a zero at keeps any existing txnTime.
// A transaction arriving with a sequence number already set must match the
// number the ledger would assign.
func (m *Microledger) Stage(txns []Transaction, at time.Time) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := uint64(len(m.committed)+len(m.staged)) + 1
	staged := make([]Transaction, 0, len(txns))
	for _, txn := range txns {
		c := txn.Clone()
		if got := c.SeqNo(); got != 0 && got != next {
			return State{}, SeqNoConflictError{Name: m.name, Expected: next, Got: got}
		}
		c.stamp(next, at)
		staged = append(staged, c)
		next++
	}
	m.staged = append(m.staged, staged...)
	return m.snapshotLocked(), nil
}

// CommitStaged durably appends the whole staging area as one batch and
// promotes it to the committed partition. The file append happens before
// the in-memory promotion, so a crash leaves either the old committed state
// or the new one, never a mix.
func (m *Microledger) CommitStaged() (State, []Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.staged) == 0 {
		return m.snapshotLocked(), nil, nil
	}
	if err := m.file.appendBatch(m.staged); err != nil {
		return State{}, nil, fmt.Errorf("ledger %q: persist batch: %w", m.name, err)
	}
	batch := m.staged
	m.committed = append(m.committed, batch...)
	m.staged = nil
	return m.snapshotLocked(), batch, nil
}

// DiscardStaged drops every uncommitted transaction.
func (m *Microledger) DiscardStaged() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged = nil
	return m.snapshotLocked()
}

// Snapshot returns the current state.
func (m *Microledger) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Microledger) snapshotLocked() State {
	all := make([]Transaction, 0, len(m.committed)+len(m.staged))
	all = append(all, m.committed...)
	all = append(all, m.staged...)
	return State{
		Name:                m.name,
		SeqNo:               uint64(len(all)),
		Size:                uint64(len(m.committed)),
		UncommittedSize:     uint64(len(all)),
		RootHash:            treeRoot(m.committed),
		UncommittedRootHash: treeRoot(all),
	}
}

// Name returns the ledger's registry name.
func (m *Microledger) Name() string {
	return m.name
}

// Size returns the number of committed transactions.
func (m *Microledger) Size() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.committed))
}

// UncommittedSize returns committed plus staged transaction count.
func (m *Microledger) UncommittedSize() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.committed) + len(m.staged))
}

// GetTransaction returns the committed transaction with the given sequence
// number.
func (m *Microledger) GetTransaction(seqNo uint64) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seqNo == 0 || seqNo > uint64(len(m.committed)) {
		return nil, fmt.Errorf("ledger %q: no committed transaction with seqNo %d", m.name, seqNo)
	}
	return m.committed[seqNo-1].Clone(), nil
}

// GetUncommittedTransaction returns the transaction with the given sequence
// number from the combined committed and staged sequence.
func (m *Microledger) GetUncommittedTransaction(seqNo uint64) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := uint64(len(m.committed) + len(m.staged))
	if seqNo == 0 || seqNo > total {
		return nil, fmt.Errorf("ledger %q: no transaction with seqNo %d", m.name, seqNo)
	}
	if seqNo <= uint64(len(m.committed)) {
		return m.committed[seqNo-1].Clone(), nil
	}
	return m.staged[seqNo-1-uint64(len(m.committed))].Clone(), nil
}

// LastTransaction returns the newest transaction, staged or committed.
func (m *Microledger) LastTransaction() (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.staged) > 0 {
		return m.staged[len(m.staged)-1].Clone(), nil
	}
	if len(m.committed) > 0 {
		return m.committed[len(m.committed)-1].Clone(), nil
	}
	return nil, fmt.Errorf("ledger %q is empty", m.name)
}

// CommittedTransactions returns clones of the committed partition.
func (m *Microledger) CommittedTransactions() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.committed)
}

// UncommittedTransactions returns clones of the staged partition.
func (m *Microledger) UncommittedTransactions() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.staged)
}

// AllTransactions returns clones of committed then staged transactions.
func (m *Microledger) AllTransactions() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]Transaction, 0, len(m.committed)+len(m.staged))
	all = append(all, cloneAll(m.committed)...)
	all = append(all, cloneAll(m.staged)...)
	return all
}

// AuditPathFor returns the inclusion proof of the committed transaction at
// seqNo against the current committed root hash.
func (m *Microledger) AuditPathFor(seqNo uint64) (AuditProof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seqNo == 0 || seqNo > uint64(len(m.committed)) {
		return AuditProof{}, fmt.Errorf("ledger %q: no committed transaction with seqNo %d", m.name, seqNo)
	}
	leaves := encodedLeaves(m.committed)
	path, err := merklearray.AuditPath(leaves, seqNo-1)
	if err != nil {
		return AuditProof{}, err
	}
	proof := AuditProof{
		RootHash:   merklearray.Root(leaves).String(),
		LedgerSize: uint64(len(m.committed)),
		AuditPath:  make([]string, len(path)),
	}
	for i, d := range path {
		proof.AuditPath[i] = d.String()
	}
	return proof, nil
}

func cloneAll(txns []Transaction) []Transaction {
	out := make([]Transaction, len(txns))
	for i, txn := range txns {
		out[i] = txn.Clone()
	}
	return out
}
