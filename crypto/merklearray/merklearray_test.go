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

package merklearray

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sirius-social/go-microledger/crypto"
	"github.com/sirius-social/go-microledger/test/partitiontest"
)

func testLeaves(n int) [][]byte {
	leaves := make([][]byte, n)
	for i := range leaves {
		leaves[i] = []byte(fmt.Sprintf("txn-%d", i))
	}
	return leaves
}

func TestEmptyTreeRoot(t *testing.T) {
	partitiontest.PartitionTest(t)

	require.Equal(t, crypto.Digest(sha256.Sum256(nil)), Root(nil))
}

func TestSingleLeafRoot(t *testing.T) {
	partitiontest.PartitionTest(t)

	leaf := []byte("only")
	want := sha256.Sum256(append([]byte{0x00}, leaf...))
	require.Equal(t, crypto.Digest(want), Root([][]byte{leaf}))
}

func TestTwoLeafRoot(t *testing.T) {
	partitiontest.PartitionTest(t)

	l := sha256.Sum256([]byte{0x00, 'a'})
	r := sha256.Sum256([]byte{0x00, 'b'})
	inner := append([]byte{0x01}, l[:]...)
	inner = append(inner, r[:]...)
	want := sha256.Sum256(inner)
	require.Equal(t, crypto.Digest(want), Root([][]byte{{'a'}, {'b'}}))
}

func TestLeafDomainSeparation(t *testing.T) {
	partitiontest.PartitionTest(t)

	// A single-leaf tree over the concatenation of two interior inputs
	// must not collide with the two-leaf tree.
	two := Root([][]byte{{'a'}, {'b'}})
	la := LeafHash([]byte{'a'})
	lb := LeafHash([]byte{'b'})
	concat := append(la[:], lb[:]...)
	one := Root([][]byte{concat})
	require.NotEqual(t, two, one)
}

func TestRootChangesWithOrder(t *testing.T) {
	partitiontest.PartitionTest(t)

	require.NotEqual(t,
		Root([][]byte{{'a'}, {'b'}, {'c'}}),
		Root([][]byte{{'c'}, {'b'}, {'a'}}))
}

func TestAuditPathAllSizes(t *testing.T) {
	partitiontest.PartitionTest(t)

	for n := 1; n <= 10; n++ {
		leaves := testLeaves(n)
		root := Root(leaves)
		for i := uint64(0); i < uint64(n); i++ {
			path, err := AuditPath(leaves, i)
			require.NoError(t, err)
			err = VerifyAuditPath(root, LeafHash(leaves[i]), i, uint64(n), path)
			require.NoError(t, err, "size %d index %d", n, i)
		}
	}
}

func TestAuditPathRejectsWrongLeaf(t *testing.T) {
	partitiontest.PartitionTest(t)

	leaves := testLeaves(7)
	root := Root(leaves)
	path, err := AuditPath(leaves, 3)
	require.NoError(t, err)

	require.Error(t, VerifyAuditPath(root, LeafHash([]byte("forged")), 3, 7, path))
	require.Error(t, VerifyAuditPath(root, LeafHash(leaves[4]), 3, 7, path))
}

func TestAuditPathRejectsWrongIndex(t *testing.T) {
	partitiontest.PartitionTest(t)

	leaves := testLeaves(8)
	root := Root(leaves)
	path, err := AuditPath(leaves, 2)
	require.NoError(t, err)

	require.Error(t, VerifyAuditPath(root, LeafHash(leaves[2]), 5, 8, path))
	require.Error(t, VerifyAuditPath(root, LeafHash(leaves[2]), 9, 8, path))
}

func TestAuditPathRejectsTruncatedPath(t *testing.T) {
	partitiontest.PartitionTest(t)

	leaves := testLeaves(6)
	root := Root(leaves)
	path, err := AuditPath(leaves, 1)
	require.NoError(t, err)
	require.NotEmpty(t, path)

	require.Error(t, VerifyAuditPath(root, LeafHash(leaves[1]), 1, 6, path[:len(path)-1]))
	require.Error(t, VerifyAuditPath(root, LeafHash(leaves[1]), 1, 6, append(path, path[0])))
}

func TestAuditPathOutOfRange(t *testing.T) {
	partitiontest.PartitionTest(t)

	_, err := AuditPath(testLeaves(3), 3)
	require.Error(t, err)
}
