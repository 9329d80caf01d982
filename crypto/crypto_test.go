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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sirius-social/go-microledger/test/partitiontest"
)

func TestDigestStringRoundTrip(t *testing.T) {
	partitiontest.PartitionTest(t)

	d := Hash([]byte("genesis"))
	back, err := DigestFromString(d.String())
	require.NoError(t, err)
	require.Equal(t, d, back)

	_, err = DigestFromString("tooshort")
	require.Error(t, err)
}

func TestVerkeyRoundTrip(t *testing.T) {
	partitiontest.PartitionTest(t)

	secrets := GenerateSignatureSecrets([32]byte{1, 2, 3})
	pub, err := secrets.Verkey.PublicKey()
	require.NoError(t, err)
	require.Len(t, []byte(pub), 32)

	msg := []byte("hello")
	sig := secrets.SignBytes(msg)
	require.True(t, secrets.Verkey.VerifyBytes(msg, sig))
	require.False(t, secrets.Verkey.VerifyBytes([]byte("tampered"), sig))

	other := GenerateSignatureSecrets([32]byte{9})
	require.False(t, other.Verkey.VerifyBytes(msg, sig))
}

func TestSignedEnvelopeRoundTrip(t *testing.T) {
	partitiontest.PartitionTest(t)

	secrets := GenerateSignatureSecrets([32]byte{7})
	at := time.Unix(1700000000, 0)
	payload := map[string]interface{}{"func": "sha256", "base58": "abc"}

	env := Sign(payload, secrets, at)
	require.Equal(t, secrets.Verkey, env.Signer)

	got, gotAt, err := env.Verify()
	require.NoError(t, err)
	require.Equal(t, at.Unix(), gotAt.Unix())
	require.Equal(t, `{"base58":"abc","func":"sha256"}`, string(got))
}

func TestSignedEnvelopeRejectsWrongSigner(t *testing.T) {
	partitiontest.PartitionTest(t)

	alice := GenerateSignatureSecrets([32]byte{1})
	bob := GenerateSignatureSecrets([32]byte{2})

	env := Sign("state-hash", alice, time.Now())
	_, _, err := env.VerifyAs(bob.Verkey)
	require.ErrorIs(t, err, ErrWrongSigner)

	// Claiming bob as signer without bob's key must fail verification.
	env.Signer = bob.Verkey
	_, _, err = env.VerifyAs(bob.Verkey)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestSignedEnvelopeRejectsTampering(t *testing.T) {
	partitiontest.PartitionTest(t)

	secrets := GenerateSignatureSecrets([32]byte{3})
	env := Sign("original", secrets, time.Now())

	forged := Sign("forged", secrets, time.Now())
	env.SigData = forged.SigData
	_, _, err := env.Verify()
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestSignedEnvelopeWrongType(t *testing.T) {
	partitiontest.PartitionTest(t)

	secrets := GenerateSignatureSecrets([32]byte{4})
	env := Sign("x", secrets, time.Now())
	env.Type = "bogus"
	_, _, err := env.Verify()
	require.ErrorIs(t, err, ErrWrongEnvelope)
}

func TestExcessiveSkew(t *testing.T) {
	partitiontest.PartitionTest(t)

	now := time.Unix(1700000000, 0)
	require.False(t, ExcessiveSkew(now.Add(-time.Minute), now, 5*time.Minute))
	require.False(t, ExcessiveSkew(now.Add(time.Minute), now, 5*time.Minute))
	require.True(t, ExcessiveSkew(now.Add(-time.Hour), now, 5*time.Minute))
	require.True(t, ExcessiveSkew(now.Add(time.Hour), now, 5*time.Minute))
}
