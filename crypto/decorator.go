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
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/sirius-social/go-microledger/protocol"
)

// SignedEnvelope is the ed25519Sha512_single signature decorator. sig_data
// is base64 of an 8-byte big-endian Unix timestamp followed by the
// canonical JSON payload; the signature covers the raw sig_data bytes.
type SignedEnvelope struct {
	Type      string `json:"@type"`
	Signer    Verkey `json:"signer"`
	SigData   string `json:"sig_data"`
	Signature string `json:"signature"`
}

// Errors returned by envelope verification.
var (
	ErrBadSignature  = errors.New("signature does not verify under claimed signer")
	ErrWrongSigner   = errors.New("envelope signer differs from expected verkey")
	ErrShortSigData  = errors.New("sig_data shorter than timestamp prefix")
	ErrWrongEnvelope = errors.New("unexpected signature decorator @type")
)

// Sign wraps payload into a signature decorator. The payload is reduced to
// canonical JSON before signing, so structurally equal payloads produce
// identical sig_data for a given timestamp.
func Sign(payload interface{}, secrets *SignatureSecrets, at time.Time) SignedEnvelope {
	data := protocol.EncodeJSON(payload)
	sigData := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(sigData[:8], uint64(at.Unix()))
	copy(sigData[8:], data)

	sig := secrets.SignBytes(sigData)
	return SignedEnvelope{
		Type:      protocol.SignatureType,
		Signer:    secrets.Verkey,
		SigData:   base64.URLEncoding.EncodeToString(sigData),
		Signature: base64.URLEncoding.EncodeToString(sig),
	}
}

// Verify checks the envelope against its embedded signer and returns the
// canonical payload bytes and the signing timestamp. Timestamp skew is not
// judged here; the caller owns that policy because protocol deadlines
// already bound a run's lifetime.
func (e SignedEnvelope) Verify() (payload []byte, at time.Time, err error) {
	if e.Type != protocol.SignatureType {
		return nil, time.Time{}, fmt.Errorf("%w: %q", ErrWrongEnvelope, e.Type)
	}
	sigData, err := base64.URLEncoding.DecodeString(e.SigData)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("sig_data: %w", err)
	}
	sig, err := base64.URLEncoding.DecodeString(e.Signature)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("signature: %w", err)
	}
	if len(sigData) < 8 {
		return nil, time.Time{}, ErrShortSigData
	}
	if !e.Signer.VerifyBytes(sigData, sig) {
		return nil, time.Time{}, ErrBadSignature
	}
	ts := binary.BigEndian.Uint64(sigData[:8])
	return sigData[8:], time.Unix(int64(ts), 0), nil
}

// VerifyAs verifies the envelope and additionally requires that the signer
// matches the verkey the DID table reports for the claimed participant.
func (e SignedEnvelope) VerifyAs(expected Verkey) (payload []byte, at time.Time, err error) {
	if e.Signer != expected {
		return nil, time.Time{}, fmt.Errorf("%w: got %q, want %q", ErrWrongSigner, e.Signer, expected)
	}
	return e.Verify()
}

// ExcessiveSkew reports whether the signing timestamp lies more than maxSkew
// away from now, in either direction.
func ExcessiveSkew(at, now time.Time, maxSkew time.Duration) bool {
	d := now.Sub(at)
	if d < 0 {
		d = -d
	}
	return d > maxSkew
}
