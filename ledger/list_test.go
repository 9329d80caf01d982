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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sirius-social/go-microledger/logging"
	"github.com/sirius-social/go-microledger/test/partitiontest"
)

func TestListCreateAndLookup(t *testing.T) {
	partitiontest.PartitionTest(t)

	l := openTestList(t)
	_, _, err := l.Create("alpha", testTxns(1, "g"), time.Now())
	require.NoError(t, err)

	require.True(t, l.Exists("alpha"))
	require.False(t, l.Exists("beta"))

	_, err = l.Ledger("alpha")
	require.NoError(t, err)
	_, err = l.Ledger("beta")
	var notFound NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "beta", notFound.Name)

	_, _, err = l.Create("alpha", testTxns(1, "g"), time.Now())
	var exists AlreadyExistsError
	require.ErrorAs(t, err, &exists)
	require.Equal(t, "alpha", exists.Name)
}

func TestListDelete(t *testing.T) {
	partitiontest.PartitionTest(t)

	l := openTestList(t)
	_, _, err := l.Create("gone", testTxns(1, "g"), time.Now())
	require.NoError(t, err)
	require.NoError(t, l.Delete("gone"))
	require.False(t, l.Exists("gone"))
	require.Error(t, l.Delete("gone"))

	// The name is reusable after deletion.
	_, _, err = l.Create("gone", testTxns(2, "g2"), time.Now())
	require.NoError(t, err)
}

func TestListRename(t *testing.T) {
	partitiontest.PartitionTest(t)

	l := openTestList(t)
	m, created, err := l.Create("old", testTxns(2, "g"), time.Now())
	require.NoError(t, err)
	committed := m.Snapshot()
	require.Equal(t, created.RootHash, committed.RootHash)

	require.NoError(t, l.Rename("old", "new"))
	require.False(t, l.Exists("old"))
	require.True(t, l.Exists("new"))

	renamed, err := l.Ledger("new")
	require.NoError(t, err)
	state := renamed.Snapshot()
	require.Equal(t, "new", state.Name)
	require.Equal(t, created.RootHash, state.RootHash)

	require.Error(t, l.Rename("missing", "x"))
	_, _, err = l.Create("blocker", testTxns(1, "g"), time.Now())
	require.NoError(t, err)
	require.Error(t, l.Rename("new", "blocker"))
}

func TestListValidatesNames(t *testing.T) {
	partitiontest.PartitionTest(t)

	l := openTestList(t)
	for _, name := range []string{"", "..", "a/b", "a b", "x\x00y"} {
		_, _, err := l.Create(name, testTxns(1, "g"), time.Now())
		require.Error(t, err, "name %q", name)
	}
	_, _, err := l.Create("ok-name_1.2", testTxns(1, "g"), time.Now())
	require.NoError(t, err)
}

func TestListDirectoryLock(t *testing.T) {
	partitiontest.PartitionTest(t)

	dir := t.TempDir()
	log := logging.TestingLogger(t)
	l, err := OpenList(dir, log)
	require.NoError(t, err)

	_, err = OpenList(dir, log)
	require.Error(t, err)

	require.NoError(t, l.Close())
	l2, err := OpenList(dir, log)
	require.NoError(t, err)
	require.NoError(t, l2.Close())
}
