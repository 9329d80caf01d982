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

// Package merklearray computes RFC 6962 Merkle tree heads and audit paths
// over an array of leaves. Ledger root hashes are tree heads over the
// canonical encodings of the transactions, so two replicas agree on a root
// exactly when they hold the same transaction sequence.
package merklearray

import (
	"fmt"

	"github.com/sirius-social/go-microledger/crypto"
)

// Domain separation prefixes. Leaves and interior nodes hash under
// different first bytes so that a leaf can never be reinterpreted as an
// interior node.
const (
	leafPrefix     = 0x00
	interiorPrefix = 0x01
)

// LeafHash returns the RFC 6962 leaf hash of data.
func LeafHash(data []byte) crypto.Digest {
	buf := make([]byte, 1+len(data))
	buf[0] = leafPrefix
	copy(buf[1:], data)
	return crypto.Hash(buf)
}

func interiorHash(left, right crypto.Digest) crypto.Digest {
	var buf [1 + 2*crypto.DigestSize]byte
	buf[0] = interiorPrefix
	copy(buf[1:], left[:])
	copy(buf[1+crypto.DigestSize:], right[:])
	return crypto.Hash(buf[:])
}

// largestPowerOfTwoBelow returns the largest power of two strictly less
// than n. n must be at least 2.
func largestPowerOfTwoBelow(n uint64) uint64 {
	k := uint64(1)
	for k*2 < n {
		k *= 2
	}
	return k
}

// Root computes the RFC 6962 tree head over leaves. The empty tree hashes
// to the digest of the empty string.
func Root(leaves [][]byte) crypto.Digest {
	switch len(leaves) {
	case 0:
		return crypto.Hash(nil)
	case 1:
		return LeafHash(leaves[0])
	}
	k := largestPowerOfTwoBelow(uint64(len(leaves)))
	return interiorHash(Root(leaves[:k]), Root(leaves[k:]))
}

// AuditPath returns the audit path for the leaf at index, ordered from the
// leaf's sibling up to the child of the root. Verifying the path against
// the tree head proves that leaves[index] is part of the tree.
func AuditPath(leaves [][]byte, index uint64) ([]crypto.Digest, error) {
	if index >= uint64(len(leaves)) {
		return nil, fmt.Errorf("merklearray: index %d out of range for %d leaves", index, len(leaves))
	}
	return auditPath(leaves, index), nil
}

func auditPath(leaves [][]byte, index uint64) []crypto.Digest {
	if len(leaves) == 1 {
		return nil
	}
	k := largestPowerOfTwoBelow(uint64(len(leaves)))
	if index < k {
		path := auditPath(leaves[:k], index)
		return append(path, Root(leaves[k:]))
	}
	path := auditPath(leaves[k:], index-k)
	return append(path, Root(leaves[:k]))
}

// VerifyAuditPath reconstructs the tree head from a leaf hash and its audit
// path and reports whether it matches root. size is the total number of
// leaves in the tree the path was generated against.
func VerifyAuditPath(root crypto.Digest, leaf crypto.Digest, index uint64, size uint64, path []crypto.Digest) error {
	if size == 0 {
		return fmt.Errorf("merklearray: cannot verify a path against an empty tree")
	}
	if index >= size {
		return fmt.Errorf("merklearray: index %d out of range for tree of size %d", index, size)
	}

	fn, sn := index, size-1
	cur := leaf
	for _, p := range path {
		if sn == 0 {
			return fmt.Errorf("merklearray: path longer than tree height")
		}
		if fn&1 == 1 || fn == sn {
			cur = interiorHash(p, cur)
			for fn&1 == 0 && fn != 0 {
				fn >>= 1
				sn >>= 1
			}
		} else {
			cur = interiorHash(cur, p)
		}
		fn >>= 1
		sn >>= 1
	}
	if sn != 0 {
		return fmt.Errorf("merklearray: path shorter than tree height")
	}
	if cur != root {
		return fmt.Errorf("merklearray: computed root %s does not match %s", cur, root)
	}
	return nil
}
