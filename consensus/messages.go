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
	"fmt"

	"github.com/sirius-social/go-microledger/crypto"
	"github.com/sirius-social/go-microledger/ledger"
	"github.com/sirius-social/go-microledger/protocol"
)

// DID identifies a participant. Verkeys are bound to DIDs through the
// Resolver the service is constructed with.
type DID string

// Meta carries the envelope attributes every protocol message shares.
type Meta struct {
	ID     string  `json:"@id"`
	Thread *Thread `json:"~thread,omitempty"`
}

// Thread groups messages of one protocol run.
type Thread struct {
	ThID string `json:"thid"`
}

// ThreadID returns the run identifier: the ~thread decorator when present,
// otherwise the message's own id.
func (m Meta) ThreadID() string {
	if m.Thread != nil && m.Thread.ThID != "" {
		return m.Thread.ThID
	}
	return m.ID
}

// LedgerHash names the digest of the canonical encoding of a ledger object.
type LedgerHash struct {
	Func   string `json:"func"`
	Base58 string `json:"base58"`
}

// LedgerHashOf computes the digest marker for a ledger object.
func LedgerHashOf(ledgerObj map[string]interface{}) LedgerHash {
	return LedgerHash{
		Func:   "sha256",
		Base58: crypto.Hash(protocol.EncodeJSON(ledgerObj)).String(),
	}
}

// ParticipantSignature pairs a participant with its signature envelope.
type ParticipantSignature struct {
	Participant DID                   `json:"participant"`
	Signature   crypto.SignedEnvelope `json:"signature"`
}

// InitLedgerMessage is the body shared by initialize-request and
// initialize-response. The response differs from the request only in that
// its signature list has grown by the responder's own signature over the
// ledger~hash object.
type InitLedgerMessage struct {
	Meta
	Timeout      uint64                 `json:"timeout_sec,omitempty"`
	Participants []DID                  `json:"participants"`
	Ledger       map[string]interface{} `json:"ledger"`
	LedgerHash   *LedgerHash            `json:"ledger~hash,omitempty"`
	Signatures   []ParticipantSignature `json:"signatures"`

	Extra map[string]interface{} `json:"-"`
}

// SignatureOf returns the signature envelope a given participant
// contributed, if any.
func (m *InitLedgerMessage) SignatureOf(did DID) (crypto.SignedEnvelope, bool) {
	for _, ps := range m.Signatures {
		if ps.Participant == did {
			return ps.Signature, true
		}
	}
	return crypto.SignedEnvelope{}, false
}

// ProposeMessage opens an accept-block round with the staged transactions
// and the proposer's resulting uncommitted state.
type ProposeMessage struct {
	Meta
	Timeout      uint64               `json:"timeout_sec,omitempty"`
	Participants []DID                `json:"participants"`
	Transactions []ledger.Transaction `json:"transactions"`
	State        ledger.State         `json:"state"`
	Hash         string               `json:"hash"`

	Extra map[string]interface{} `json:"-"`
}

// PreCommitMessage carries a participant's signature over the state hash it
// computed after staging the proposed transactions.
type PreCommitMessage struct {
	Meta
	Hash    string                `json:"hash"`
	HashSig crypto.SignedEnvelope `json:"hash~sig"`

	Extra map[string]interface{} `json:"-"`
}

// CommitMessage distributes the assembled pre-commit set. The commit~sig
// envelope signs the message body with the commit~sig attribute removed, so
// every receiver can rebuild the signed bytes from what it received.
type CommitMessage struct {
	Meta
	Participants []DID                            `json:"participants"`
	PreCommits   map[string]crypto.SignedEnvelope `json:"pre_commits"`
	CommitSig    *crypto.SignedEnvelope           `json:"commit~sig,omitempty"`

	Extra map[string]interface{} `json:"-"`
}

// PostCommitMessage closes a round with the signatures participants issued
// over the commit message body.
type PostCommitMessage struct {
	Meta
	Commits []crypto.SignedEnvelope `json:"commits"`

	Extra map[string]interface{} `json:"-"`
}

// ProblemReportMessage aborts a run.
type ProblemReportMessage struct {
	Meta
	ProblemCode protocol.ProblemCode `json:"problem-code"`
	Explain     string               `json:"explain"`

	Extra map[string]interface{} `json:"-"`
}

// AckMessage closes the initialize-ledger happy path.
type AckMessage struct {
	Meta
	Status string `json:"status"`

	Extra map[string]interface{} `json:"-"`
}

// Message is a decoded protocol message together with the raw wire map it
// came from. Raw is kept because some signatures cover the received bytes
// with one attribute removed, and the receiver must rebuild exactly what
// the sender signed, unknown attributes included.
type Message struct {
	Type protocol.MessageType
	Body interface{}
	Raw  map[string]interface{}
}

// knownKeys lists the attributes each message type declares. Anything else
// on the wire lands in Extra and survives a re-encode untouched.
var knownKeys = map[protocol.MessageType][]string{
	protocol.InitializeRequest:  {"timeout_sec", "participants", "ledger", "ledger~hash", "signatures"},
	protocol.InitializeResponse: {"timeout_sec", "participants", "ledger", "ledger~hash", "signatures"},
	protocol.StagePropose:       {"timeout_sec", "participants", "transactions", "state", "hash"},
	protocol.StagePreCommit:     {"hash", "hash~sig"},
	protocol.StageCommit:        {"participants", "pre_commits", "commit~sig"},
	protocol.StagePostCommit:    {"commits"},
	protocol.ProblemReport:      {"problem-code", "explain"},
	protocol.Ack:                {"status"},
}

var metaKeys = []string{"@type", "@id", "~thread"}

// DecodeMessage parses a wire envelope into its typed body.
func DecodeMessage(envelope []byte) (Message, error) {
	var raw map[string]interface{}
	if err := protocol.DecodeJSON(envelope, &raw); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	typStr, _ := raw["@type"].(string)
	typ := protocol.MessageType(typStr)

	keys, ok := knownKeys[typ]
	if !ok {
		return Message{}, fmt.Errorf("unsupported message type %q", typStr)
	}

	var body interface{}
	switch typ {
	case protocol.InitializeRequest, protocol.InitializeResponse:
		body = new(InitLedgerMessage)
	case protocol.StagePropose:
		body = new(ProposeMessage)
	case protocol.StagePreCommit:
		body = new(PreCommitMessage)
	case protocol.StageCommit:
		body = new(CommitMessage)
	case protocol.StagePostCommit:
		body = new(PostCommitMessage)
	case protocol.ProblemReport:
		body = new(ProblemReportMessage)
	case protocol.Ack:
		body = new(AckMessage)
	}
	if err := protocol.DecodeJSON(envelope, body); err != nil {
		return Message{}, fmt.Errorf("decode %s: %w", typ, err)
	}

	extra := make(map[string]interface{})
	for k, v := range raw {
		known := false
		for _, kk := range append(keys, metaKeys...) {
			if k == kk {
				known = true
				break
			}
		}
		if !known {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		setExtra(body, extra)
	}
	return Message{Type: typ, Body: body, Raw: raw}, nil
}

func setExtra(body interface{}, extra map[string]interface{}) {
	switch b := body.(type) {
	case *InitLedgerMessage:
		b.Extra = extra
	case *ProposeMessage:
		b.Extra = extra
	case *PreCommitMessage:
		b.Extra = extra
	case *CommitMessage:
		b.Extra = extra
	case *PostCommitMessage:
		b.Extra = extra
	case *ProblemReportMessage:
		b.Extra = extra
	case *AckMessage:
		b.Extra = extra
	}
}

func extraOf(body interface{}) map[string]interface{} {
	switch b := body.(type) {
	case *InitLedgerMessage:
		return b.Extra
	case *ProposeMessage:
		return b.Extra
	case *PreCommitMessage:
		return b.Extra
	case *CommitMessage:
		return b.Extra
	case *PostCommitMessage:
		return b.Extra
	case *ProblemReportMessage:
		return b.Extra
	case *AckMessage:
		return b.Extra
	}
	return nil
}

// messageMap renders a message body as the generic wire map: the struct's
// declared attributes, any preserved unknown attributes, and @type.
func messageMap(typ protocol.MessageType, body interface{}) map[string]interface{} {
	var m map[string]interface{}
	if err := protocol.DecodeJSON(protocol.EncodeJSON(body), &m); err != nil {
		panic(fmt.Sprintf("consensus: message round-trip: %v", err))
	}
	for k, v := range extraOf(body) {
		if _, taken := m[k]; !taken {
			m[k] = v
		}
	}
	m["@type"] = string(typ)
	return m
}

// EncodeMessage renders a message body into its canonical wire form.
func EncodeMessage(typ protocol.MessageType, body interface{}) []byte {
	return protocol.EncodeJSON(messageMap(typ, body))
}
