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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sirius-social/go-microledger/crypto"
	"github.com/sirius-social/go-microledger/protocol"
	"github.com/sirius-social/go-microledger/test/partitiontest"
)

func TestDecodeMessagePreservesUnknownAttributes(t *testing.T) {
	partitiontest.PartitionTest(t)

	wire := []byte(`{"@id":"m1","@type":"` + string(protocol.Ack) +
		`","status":"OK","x-custom":{"a":1},"~thread":{"thid":"t1"}}`)

	msg, err := DecodeMessage(wire)
	require.NoError(t, err)
	require.Equal(t, protocol.Ack, msg.Type)

	ack, ok := msg.Body.(*AckMessage)
	require.True(t, ok)
	require.Equal(t, "OK", ack.Status)
	require.Equal(t, "t1", ack.ThreadID())
	require.Contains(t, ack.Extra, "x-custom")

	require.Equal(t, wire, EncodeMessage(protocol.Ack, ack))
}

func TestDecodeMessageRejectsUnknownType(t *testing.T) {
	partitiontest.PartitionTest(t)

	_, err := DecodeMessage([]byte(`{"@id":"m1","@type":"did:sov:xyz;spec/other/1.0/ping"}`))
	require.Error(t, err)
}

func TestThreadIDFallsBackToMessageID(t *testing.T) {
	partitiontest.PartitionTest(t)

	m := Meta{ID: "m7"}
	require.Equal(t, "m7", m.ThreadID())
	m.Thread = &Thread{ThID: "t9"}
	require.Equal(t, "t9", m.ThreadID())
}

func TestLedgerHashOfIsOrderInsensitive(t *testing.T) {
	partitiontest.PartitionTest(t)

	a := map[string]interface{}{}
	a["name"] = "x"
	a["root_hash"] = "r"
	b := map[string]interface{}{}
	b["root_hash"] = "r"
	b["name"] = "x"
	require.Equal(t, LedgerHashOf(a), LedgerHashOf(b))
	require.Equal(t, "sha256", LedgerHashOf(a).Func)
}

func TestCommitSignatureCoversReceivedBytes(t *testing.T) {
	partitiontest.PartitionTest(t)

	secrets := crypto.GenerateSignatureSecrets([32]byte{42})
	pre := crypto.Sign("state-hash", secrets, time.Now())
	commit := &CommitMessage{
		Meta:         Meta{ID: "c1", Thread: &Thread{ThID: "t1"}},
		Participants: []DID{"did:a", "did:b"},
		PreCommits:   map[string]crypto.SignedEnvelope{"did:b": pre},
	}

	// Sender signs the body without commit~sig, then attaches the
	// signature.
	payload := messageMap(protocol.StageCommit, commit)
	delete(payload, "commit~sig")
	sig := crypto.Sign(payload, secrets, time.Now())
	commit.CommitSig = &sig
	wire := EncodeMessage(protocol.StageCommit, commit)

	// Receiver rebuilds the signed bytes from what actually arrived.
	msg, err := DecodeMessage(wire)
	require.NoError(t, err)
	got, ok := msg.Body.(*CommitMessage)
	require.True(t, ok)
	require.NotNil(t, got.CommitSig)

	rebuilt := make(map[string]interface{}, len(msg.Raw))
	for k, v := range msg.Raw {
		if k != "commit~sig" {
			rebuilt[k] = v
		}
	}
	signed, _, err := got.CommitSig.VerifyAs(secrets.Verkey)
	require.NoError(t, err)
	require.Equal(t, protocol.EncodeJSON(rebuilt), signed)
}
