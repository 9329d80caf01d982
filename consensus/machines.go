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

package consensus

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"

	"github.com/sirius-social/go-microledger/crypto"
	"github.com/sirius-social/go-microledger/ledger"
	"github.com/sirius-social/go-microledger/protocol"
)

// newID mints a message id.
func newID() string {
	return uuid.NewString()
}

// abortError terminates a machine with a problem code. The participant
// machines turn it into a problem_report to the actor.
type abortError struct {
	code    protocol.ProblemCode
	explain string
}

func (e abortError) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.explain)
}

func abortf(code protocol.ProblemCode, format string, args ...interface{}) abortError {
	return abortError{code: code, explain: fmt.Sprintf(format, args...)}
}

// problemReport builds a problem_report envelope for a thread.
func problemReport(thid string, code protocol.ProblemCode, explain string) []byte {
	msg := &ProblemReportMessage{
		Meta:        Meta{ID: newID(), Thread: &Thread{ThID: thid}},
		ProblemCode: code,
		Explain:     explain,
	}
	return EncodeMessage(protocol.ProblemReport, msg)
}

// broadcast builds one outbound per recipient carrying the same payload.
func broadcast(to []DID, payload []byte) []outbound {
	out := make([]outbound, 0, len(to))
	for _, did := range to {
		out = append(out, outbound{To: did, Payload: payload})
	}
	return out
}

// othersOf returns participants minus me, and reports whether me was in the
// set at all.
func othersOf(participants []DID, me DID) ([]DID, bool) {
	others := make([]DID, 0, len(participants))
	found := false
	for _, did := range participants {
		if did == me {
			found = true
			continue
		}
		others = append(others, did)
	}
	return others, found
}

// verifyEnvelope checks that env is a valid signature by signer over
// exactly wantPayload, with a timestamp within the skew window.
func (c *machineContext) verifyEnvelope(env crypto.SignedEnvelope, signer DID, wantPayload []byte) error {
	vk, err := c.verkeyOf(signer)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", signer, err)
	}
	payload, at, err := env.VerifyAs(vk)
	if err != nil {
		return fmt.Errorf("signature of %q: %w", signer, err)
	}
	if crypto.ExcessiveSkew(at, c.now(), c.maxSkew) {
		return fmt.Errorf("signature of %q: timestamp %v too far from local time", signer, at)
	}
	if !bytes.Equal(payload, wantPayload) {
		return fmt.Errorf("signature of %q covers unexpected payload", signer)
	}
	return nil
}

// txnsFromAny converts a decoded JSON array into transactions.
func txnsFromAny(v interface{}) ([]ledger.Transaction, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("genesis is not an array")
	}
	txns := make([]ledger.Transaction, len(arr))
	for i, el := range arr {
		m, ok := el.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("genesis entry %d is not an object", i)
		}
		txns[i] = ledger.Transaction(m)
	}
	return txns, nil
}
