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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sirius-social/go-microledger/crypto"
	"github.com/sirius-social/go-microledger/crypto/merklearray"
	"github.com/sirius-social/go-microledger/logging"
	"github.com/sirius-social/go-microledger/test/partitiontest"
)

func testTxns(n int, prefix string) []Transaction {
	txns := make([]Transaction, n)
	for i := range txns {
		txns[i] = Transaction{"op": fmt.Sprintf("%s-%d", prefix, i)}
	}
	return txns
}

func openTestList(t *testing.T) *List {
	l, err := OpenList(t.TempDir(), logging.TestingLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestGenesisAssignsDenseSeqNos(t *testing.T) {
	partitiontest.PartitionTest(t)

	l := openTestList(t)
	at := time.Unix(1700000000, 0)
	m, state, err := l.Create("accounts", testTxns(3, "g"), at)
	require.NoError(t, err)

	require.Equal(t, uint64(3), state.Size)
	require.Equal(t, uint64(3), state.UncommittedSize)
	require.Equal(t, state.RootHash, state.UncommittedRootHash)

	for i, txn := range m.CommittedTransactions() {
		require.Equal(t, uint64(i+1), txn.SeqNo())
		require.Equal(t, "2023-11-14T22:13:20Z", txn.Time())
	}
}

func TestGenesisValidation(t *testing.T) {
	partitiontest.PartitionTest(t)

	l := openTestList(t)

	_, _, err := l.Create("empty", nil, time.Now())
	require.ErrorAs(t, err, &InvalidGenesisError{})

	// Pre-stamped genesis must form the dense run 1..n.
	bad := testTxns(2, "g")
	bad[0].stamp(2, time.Now())
	bad[1].stamp(3, time.Now())
	_, _, err = l.Create("gappy", bad, time.Now())
	require.ErrorAs(t, err, &InvalidGenesisError{})
}

func TestGenesisReplayKeepsStamps(t *testing.T) {
	partitiontest.PartitionTest(t)

	l := openTestList(t)
	at := time.Unix(1700000000, 0)
	m, state, err := l.Create("src", testTxns(2, "g"), at)
	require.NoError(t, err)

	// A replica bootstraps from the stamped transactions and must land on
	// the same root hash.
	l2 := openTestList(t)
	_, state2, err := l2.Create("src", m.CommittedTransactions(), time.Now())
	require.NoError(t, err)
	require.Equal(t, state.RootHash, state2.RootHash)
	require.Equal(t, state.Hash(), state2.Hash())
}

func TestStageCommitDiscard(t *testing.T) {
	partitiontest.PartitionTest(t)

	l := openTestList(t)
	m, genesisState, err := l.Create("flow", testTxns(1, "g"), time.Now())
	require.NoError(t, err)

	staged, err := m.Stage(testTxns(2, "b"), time.Now())
	require.NoError(t, err)
	require.Equal(t, uint64(1), staged.Size)
	require.Equal(t, uint64(3), staged.UncommittedSize)
	require.Equal(t, genesisState.RootHash, staged.RootHash)
	require.NotEqual(t, staged.RootHash, staged.UncommittedRootHash)

	// Discard rolls back to the committed snapshot.
	back := m.DiscardStaged()
	require.Equal(t, genesisState, back)

	// Stage again and commit for real.
	_, err = m.Stage(testTxns(2, "b"), time.Now())
	require.NoError(t, err)
	committed, batch, err := m.CommitStaged()
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.Equal(t, uint64(3), committed.Size)
	require.Equal(t, committed.RootHash, committed.UncommittedRootHash)
	require.Equal(t, uint64(2), batch[0].SeqNo())
	require.Equal(t, uint64(3), batch[1].SeqNo())
}

func TestStageRejectsSeqNoConflict(t *testing.T) {
	partitiontest.PartitionTest(t)

	l := openTestList(t)
	m, _, err := l.Create("conflict", testTxns(2, "g"), time.Now())
	require.NoError(t, err)

	wrong := Transaction{"op": "late"}
	wrong.stamp(7, time.Now())
	_, err = m.Stage([]Transaction{wrong}, time.Now())
	var conflict SeqNoConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, uint64(3), conflict.Expected)
	require.Equal(t, uint64(7), conflict.Got)

	// Matching preset numbers are accepted; the staging area was not
	// polluted by the failed call.
	right := Transaction{"op": "ontime"}
	right.stamp(3, time.Now())
	_, err = m.Stage([]Transaction{right}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, uint64(3), m.UncommittedSize())
}

func TestStageWithZeroTimeKeepsTxnTime(t *testing.T) {
	partitiontest.PartitionTest(t)

	l := openTestList(t)
	m, _, err := l.Create("times", testTxns(1, "g"), time.Now())
	require.NoError(t, err)

	at := time.Unix(1700000000, 0)
	txn := Transaction{"op": "x"}
	txn.stamp(2, at)
	state1, err := m.Stage([]Transaction{txn}, time.Time{})
	require.NoError(t, err)

	got, err := m.GetUncommittedTransaction(2)
	require.NoError(t, err)
	require.Equal(t, "2023-11-14T22:13:20Z", got.Time())

	// A replica staging the same stamped transactions computes the same
	// state hash.
	l2 := openTestList(t)
	m2, _, err := l2.Create("times", m.CommittedTransactions(), time.Now())
	require.NoError(t, err)
	state2, err := m2.Stage([]Transaction{got}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, state1.Hash(), state2.Hash())
}

func TestAccessors(t *testing.T) {
	partitiontest.PartitionTest(t)

	l := openTestList(t)
	m, _, err := l.Create("acc", testTxns(2, "g"), time.Now())
	require.NoError(t, err)
	_, err = m.Stage(testTxns(1, "b"), time.Now())
	require.NoError(t, err)

	txn, err := m.GetTransaction(2)
	require.NoError(t, err)
	require.Equal(t, "g-1", txn["op"])

	_, err = m.GetTransaction(3)
	require.Error(t, err)

	txn, err = m.GetUncommittedTransaction(3)
	require.NoError(t, err)
	require.Equal(t, "b-0", txn["op"])

	last, err := m.LastTransaction()
	require.NoError(t, err)
	require.Equal(t, "b-0", last["op"])

	require.Len(t, m.AllTransactions(), 3)
	require.Len(t, m.CommittedTransactions(), 2)
	require.Len(t, m.UncommittedTransactions(), 1)
}

func TestAuditProofVerifies(t *testing.T) {
	partitiontest.PartitionTest(t)

	l := openTestList(t)
	m, _, err := l.Create("proofs", testTxns(5, "g"), time.Now())
	require.NoError(t, err)

	for seqNo := uint64(1); seqNo <= 5; seqNo++ {
		proof, err := m.AuditPathFor(seqNo)
		require.NoError(t, err)
		require.Equal(t, uint64(5), proof.LedgerSize)

		root, err := crypto.DigestFromString(proof.RootHash)
		require.NoError(t, err)
		path := make([]crypto.Digest, len(proof.AuditPath))
		for i, s := range proof.AuditPath {
			path[i], err = crypto.DigestFromString(s)
			require.NoError(t, err)
		}
		txn, err := m.GetTransaction(seqNo)
		require.NoError(t, err)
		leaf := merklearray.LeafHash(txn.Encode())
		require.NoError(t, merklearray.VerifyAuditPath(root, leaf, seqNo-1, 5, path))
	}

	_, err = m.AuditPathFor(6)
	require.Error(t, err)
}

func TestStateHashCoversEveryField(t *testing.T) {
	partitiontest.PartitionTest(t)

	base := State{
		Name:                "x",
		SeqNo:               3,
		Size:                2,
		UncommittedSize:     3,
		RootHash:            "r",
		UncommittedRootHash: "u",
	}
	variants := []State{base, base, base, base, base, base}
	variants[0].Name = "y"
	variants[1].SeqNo = 4
	variants[2].Size = 1
	variants[3].UncommittedSize = 4
	variants[4].RootHash = "rr"
	variants[5].UncommittedRootHash = "uu"
	for i, v := range variants {
		require.NotEqual(t, base.Hash(), v.Hash(), "variant %d", i)
	}
}
