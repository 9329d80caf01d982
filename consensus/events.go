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
	"time"

	"github.com/sirius-social/go-microledger/crypto"
	"github.com/sirius-social/go-microledger/ledger"
	"github.com/sirius-social/go-microledger/logging"
)

// event is a single input to a state machine step.
type event interface {
	eventKind() eventKind
}

type eventKind int

const (
	// messageKind is a protocol message delivered for the machine's thread.
	messageKind eventKind = iota
	// deadlineKind fires when the run's deadline elapses.
	deadlineKind
)

// messageEvent wraps one decoded inbound message.
type messageEvent struct {
	From DID
	Msg  Message
}

func (messageEvent) eventKind() eventKind { return messageKind }

// deadlineEvent signals that the run timed out.
type deadlineEvent struct{}

func (deadlineEvent) eventKind() eventKind { return deadlineKind }

// outbound is a wire envelope a step wants delivered.
type outbound struct {
	To      DID
	Payload []byte
}

// machine is a step function over events. A step returns the envelopes to
// send and whether the machine reached a terminal state; after done is
// true, the machine's Result is final.
type machine interface {
	// start performs the machine's initial transition, before any event.
	start() ([]outbound, error)
	// step consumes one event.
	step(ev event) (out []outbound, done bool, err error)
	// result reports the outcome. Valid once done or on error.
	result() Result
}

// machineContext bundles the collaborators every machine needs.
type machineContext struct {
	log      logging.Logger
	me       DID
	secrets  *crypto.SignatureSecrets
	resolver Resolver
	ledgers  *ledger.List
	maxSkew  time.Duration
	now      func() time.Time
}

// verkeyOf resolves a participant's verkey.
func (c *machineContext) verkeyOf(did DID) (crypto.Verkey, error) {
	return c.resolver.VerkeyOf(did)
}

// Operation names what a protocol run did.
type Operation string

// Operations a run can perform.
const (
	OpInitialize Operation = "initialize-ledger"
	OpCommit     Operation = "accept-block"
)

// Problem describes why a run aborted.
type Problem struct {
	Code    string
	Explain string
}

// Result is the outcome of one protocol run.
type Result struct {
	ThID   string
	Ledger string
	Op     Operation
	OK     bool
	// Problem is set when OK is false.
	Problem *Problem
	// Txns holds the committed transactions of a successful run: the
	// genesis block for initialize-ledger, the accepted batch for
	// accept-block.
	Txns []ledger.Transaction
	// QuorumCertificate holds every participant's signature over the
	// commit message of a successful accept-block run.
	QuorumCertificate []crypto.SignedEnvelope
}
