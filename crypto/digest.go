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

// Package crypto holds the primitives the consensus protocol signs and
// hashes with: SHA-256 digests, base58 wrapping as Indy agents exchange
// them, Ed25519 keys, and the detached signature decorator.
package crypto

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// DigestSize is the number of bytes in a Digest.
const DigestSize = sha256.Size

// Digest is a SHA-256 hash.
type Digest [DigestSize]byte

// Hash computes the SHA-256 digest of data.
func Hash(data []byte) Digest {
	return sha256.Sum256(data)
}

// String returns the base58 form of the digest, the representation ledger
// root hashes travel in.
func (d Digest) String() string {
	return base58.Encode(d[:])
}

// DigestFromString decodes a base58 digest string.
func DigestFromString(s string) (Digest, error) {
	var d Digest
	raw := base58.Decode(s)
	if len(raw) != DigestSize {
		return Digest{}, fmt.Errorf("digest %q: expected %d bytes, got %d", s, DigestSize, len(raw))
	}
	copy(d[:], raw)
	return d, nil
}

// MD5Hex returns the lowercase hex MD5 of data. The protocol uses it as a
// cheap equality check on state snapshots; the security of a round rests on
// the signatures, not on this digest.
func MD5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
