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

package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hdevalence/ed25519consensus"
)

// Verkey is a base58-encoded Ed25519 public key bound to a DID through the
// external resolver.
type Verkey string

// PublicKey decodes the verkey into raw Ed25519 key bytes.
func (v Verkey) PublicKey() (ed25519.PublicKey, error) {
	raw := base58.Decode(string(v))
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("verkey %q: expected %d bytes, got %d", v, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// VerifyBytes reports whether sig is a valid signature of message under
// this verkey. Verification goes through ed25519consensus so that every
// participant applies the same (ZIP215) acceptance criteria.
func (v Verkey) VerifyBytes(message, sig []byte) bool {
	pub, err := v.PublicKey()
	if err != nil {
		return false
	}
	return ed25519consensus.Verify(pub, message, sig)
}

// SignatureSecrets holds an Ed25519 keypair. The public half travels as a
// Verkey; the private half never leaves the process.
type SignatureSecrets struct {
	Verkey Verkey

	sk ed25519.PrivateKey
}

// GenerateSignatureSecrets derives a keypair deterministically from seed.
func GenerateSignatureSecrets(seed [ed25519.SeedSize]byte) *SignatureSecrets {
	sk := ed25519.NewKeyFromSeed(seed[:])
	pub := sk.Public().(ed25519.PublicKey)
	return &SignatureSecrets{
		Verkey: Verkey(base58.Encode(pub)),
		sk:     sk,
	}
}

// RandomSignatureSecrets generates a fresh keypair from the system entropy
// source.
func RandomSignatureSecrets() (*SignatureSecrets, error) {
	var seed [ed25519.SeedSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}
	return GenerateSignatureSecrets(seed), nil
}

// SignBytes signs message with the secret key.
func (s *SignatureSecrets) SignBytes(message []byte) []byte {
	return ed25519.Sign(s.sk, message)
}
