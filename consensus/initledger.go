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
	"errors"
	"fmt"

	"github.com/sirius-social/go-microledger/crypto"
	"github.com/sirius-social/go-microledger/ledger"
	"github.com/sirius-social/go-microledger/protocol"
)

// initActor drives initialize-ledger from the side that owns the genesis
// block. It creates the ledger locally, asks every participant to ratify
// it, and closes the thread with an ack once all signatures are in.
type initActor struct {
	ctx  *machineContext
	thid string

	ledgerName   string
	genesis      []ledger.Transaction
	participants []DID
	others       []DID
	timeout      uint64

	ledgerObj  map[string]interface{}
	hash       LedgerHash
	signatures []ParticipantSignature
	pending    map[DID]bool

	res  Result
	done bool
}

func newInitActor(ctx *machineContext, name string, genesis []ledger.Transaction, participants []DID, timeout uint64) (*initActor, error) {
	others, ok := othersOf(participants, ctx.me)
	if !ok {
		return nil, fmt.Errorf("own DID %q is not among the participants", ctx.me)
	}
	if len(others) == 0 {
		return nil, fmt.Errorf("initialize-ledger needs at least one other participant")
	}
	return &initActor{
		ctx:          ctx,
		thid:         newID(),
		ledgerName:   name,
		genesis:      genesis,
		participants: participants,
		others:       others,
		timeout:      timeout,
		res:          Result{Ledger: name, Op: OpInitialize},
	}, nil
}

func (a *initActor) start() ([]outbound, error) {
	m, state, err := a.ctx.ledgers.Create(a.ledgerName, a.genesis, a.ctx.now())
	if err != nil {
		return nil, err
	}
	committed := m.CommittedTransactions()

	a.ledgerObj = map[string]interface{}{
		"name":      a.ledgerName,
		"genesis":   committed,
		"root_hash": state.RootHash,
	}
	a.hash = LedgerHashOf(a.ledgerObj)
	sig := crypto.Sign(a.hash, a.ctx.secrets, a.ctx.now())
	a.signatures = []ParticipantSignature{{Participant: a.ctx.me, Signature: sig}}
	a.pending = make(map[DID]bool, len(a.others))
	for _, did := range a.others {
		a.pending[did] = true
	}
	a.res.ThID = a.thid
	a.res.Txns = committed

	req := &InitLedgerMessage{
		Meta:         Meta{ID: a.thid},
		Timeout:      a.timeout,
		Participants: a.participants,
		Ledger:       a.ledgerObj,
		LedgerHash:   &a.hash,
		Signatures:   a.signatures,
	}
	a.ctx.log.Infof("initialize-ledger %q: proposing to %d participants", a.ledgerName, len(a.others))
	return broadcast(a.others, EncodeMessage(protocol.InitializeRequest, req)), nil
}

func (a *initActor) step(ev event) ([]outbound, bool, error) {
	if a.done {
		return nil, true, nil
	}
	switch e := ev.(type) {
	case deadlineEvent:
		return a.abort(protocol.RequestProcessingError, "initialize-ledger timed out"), true, nil
	case messageEvent:
		switch msg := e.Msg.Body.(type) {
		case *InitLedgerMessage:
			if e.Msg.Type != protocol.InitializeResponse {
				return nil, false, nil
			}
			return a.onResponse(e.From, msg)
		case *ProblemReportMessage:
			// The round is dead; relay the report so every participant
			// unwinds instead of waiting out its deadline.
			a.fail(string(msg.ProblemCode), msg.Explain)
			a.dropLedger()
			var rest []DID
			for _, did := range a.others {
				if did != e.From {
					rest = append(rest, did)
				}
			}
			return broadcast(rest, problemReport(a.thid, msg.ProblemCode, msg.Explain)), true, nil
		}
	}
	return nil, false, nil
}

func (a *initActor) onResponse(from DID, msg *InitLedgerMessage) ([]outbound, bool, error) {
	if !a.pending[from] {
		return nil, false, nil
	}
	if err := a.checkResponse(from, msg); err != nil {
		out := a.abort(protocol.ResponseNotAccepted, err.Error())
		return out, true, nil
	}

	sig, _ := msg.SignatureOf(from)
	a.signatures = append(a.signatures, ParticipantSignature{Participant: from, Signature: sig})
	delete(a.pending, from)
	a.ctx.log.Debugf("initialize-ledger %q: %q ratified, %d pending", a.ledgerName, from, len(a.pending))
	if len(a.pending) > 0 {
		return nil, false, nil
	}

	ack := &AckMessage{
		Meta:   Meta{ID: newID(), Thread: &Thread{ThID: a.thid}},
		Status: "OK",
	}
	a.res.OK = true
	a.done = true
	a.ctx.log.Infof("initialize-ledger %q: all participants ratified", a.ledgerName)
	return broadcast(a.others, EncodeMessage(protocol.Ack, ack)), true, nil
}

func (a *initActor) checkResponse(from DID, msg *InitLedgerMessage) error {
	if msg.LedgerHash == nil || *msg.LedgerHash != a.hash {
		return fmt.Errorf("participant %q reports a different ledger hash", from)
	}
	sig, ok := msg.SignatureOf(from)
	if !ok {
		return fmt.Errorf("participant %q did not sign the ledger hash", from)
	}
	return a.ctx.verifyEnvelope(sig, from, protocol.EncodeJSON(a.hash))
}

func (a *initActor) abort(code protocol.ProblemCode, explain string) []outbound {
	a.fail(string(code), explain)
	a.dropLedger()
	return broadcast(a.others, problemReport(a.thid, code, explain))
}

func (a *initActor) fail(code, explain string) {
	a.done = true
	a.res.OK = false
	a.res.Problem = &Problem{Code: code, Explain: explain}
	a.ctx.log.Warnf("initialize-ledger %q failed: %s: %s", a.ledgerName, code, explain)
}

// dropLedger removes the locally created ledger after an aborted round; a
// ledger no peer ratified must not linger as if it were agreed on.
func (a *initActor) dropLedger() {
	if err := a.ctx.ledgers.Delete(a.ledgerName); err != nil {
		a.ctx.log.Warnf("initialize-ledger %q: drop after abort: %v", a.ledgerName, err)
	}
}

func (a *initActor) result() Result { return a.res }

// initParticipant is the ratifying side of initialize-ledger. It validates
// the proposed genesis, creates the ledger, countersigns, and waits for the
// actor's ack.
type initParticipant struct {
	ctx  *machineContext
	thid string

	actor      DID
	ledgerName string
	created    bool

	res  Result
	done bool
}

func newInitParticipant(ctx *machineContext, actor DID, thid string) *initParticipant {
	return &initParticipant{
		ctx:   ctx,
		thid:  thid,
		actor: actor,
		res:   Result{ThID: thid, Op: OpInitialize},
	}
}

func (p *initParticipant) start() ([]outbound, error) { return nil, nil }

func (p *initParticipant) step(ev event) ([]outbound, bool, error) {
	if p.done {
		return nil, true, nil
	}
	switch e := ev.(type) {
	case deadlineEvent:
		p.fail(string(protocol.ResponseProcessingError), "initialize-ledger timed out")
		p.dropLedger()
		return []outbound{{To: p.actor, Payload: problemReport(p.thid, protocol.ResponseProcessingError, "initialize-ledger timed out")}}, true, nil
	case messageEvent:
		switch msg := e.Msg.Body.(type) {
		case *InitLedgerMessage:
			if e.Msg.Type != protocol.InitializeRequest || e.From != p.actor {
				return nil, false, nil
			}
			return p.onRequest(msg)
		case *AckMessage:
			if e.From != p.actor {
				return nil, false, nil
			}
			p.done = true
			p.res.OK = true
			p.ctx.log.Infof("initialize-ledger %q: ratified by all participants", p.ledgerName)
			return nil, true, nil
		case *ProblemReportMessage:
			p.fail(string(msg.ProblemCode), msg.Explain)
			p.dropLedger()
			return nil, true, nil
		}
	}
	return nil, false, nil
}

func (p *initParticipant) onRequest(msg *InitLedgerMessage) ([]outbound, bool, error) {
	genesis, err := p.acceptRequest(msg)
	if err != nil {
		ae, ok := err.(abortError)
		if !ok {
			ae = abortf(protocol.RequestProcessingError, "%v", err)
		}
		p.fail(string(ae.code), ae.explain)
		p.dropLedger()
		return []outbound{{To: p.actor, Payload: problemReport(p.thid, ae.code, ae.explain)}}, true, nil
	}

	sig := crypto.Sign(*msg.LedgerHash, p.ctx.secrets, p.ctx.now())
	resp := &InitLedgerMessage{
		Meta:         Meta{ID: newID(), Thread: &Thread{ThID: p.thid}},
		Timeout:      msg.Timeout,
		Participants: msg.Participants,
		Ledger:       msg.Ledger,
		LedgerHash:   msg.LedgerHash,
		Signatures:   append(msg.Signatures, ParticipantSignature{Participant: p.ctx.me, Signature: sig}),
	}
	p.res.Txns = genesis
	p.ctx.log.Infof("initialize-ledger %q: genesis accepted, countersigning", p.ledgerName)
	return []outbound{{To: p.actor, Payload: EncodeMessage(protocol.InitializeResponse, resp)}}, false, nil
}

func (p *initParticipant) acceptRequest(msg *InitLedgerMessage) ([]ledger.Transaction, error) {
	if _, ok := othersOf(msg.Participants, p.ctx.me); !ok {
		return nil, abortf(protocol.RequestNotAccepted, "own DID is not among the participants")
	}
	if msg.LedgerHash == nil || msg.LedgerHash.Func != "sha256" {
		return nil, abortf(protocol.RequestNotAccepted, "missing or unsupported ledger~hash")
	}
	if want := LedgerHashOf(msg.Ledger); want != *msg.LedgerHash {
		return nil, abortf(protocol.RequestNotAccepted, "ledger~hash does not match the ledger object")
	}
	actorSig, ok := msg.SignatureOf(p.actor)
	if !ok {
		return nil, abortf(protocol.RequestNotAccepted, "actor did not sign the ledger hash")
	}
	if err := p.ctx.verifyEnvelope(actorSig, p.actor, protocol.EncodeJSON(*msg.LedgerHash)); err != nil {
		return nil, abortf(protocol.RequestNotAccepted, "%v", err)
	}

	name, _ := msg.Ledger["name"].(string)
	if name == "" {
		return nil, abortf(protocol.RequestNotAccepted, "ledger object has no name")
	}
	genesis, err := txnsFromAny(msg.Ledger["genesis"])
	if err != nil {
		return nil, abortf(protocol.RequestNotAccepted, "%v", err)
	}
	wantRoot, _ := msg.Ledger["root_hash"].(string)

	p.ledgerName = name
	p.res.Ledger = name
	_, state, err := p.ctx.ledgers.Create(name, genesis, p.ctx.now())
	if err != nil {
		var exists ledger.AlreadyExistsError
		if errors.As(err, &exists) {
			return nil, abortf(protocol.RequestNotAccepted, "%v", err)
		}
		return nil, abortf(protocol.RequestProcessingError, "create ledger %q: %v", name, err)
	}
	p.created = true
	if state.RootHash != wantRoot {
		return nil, abortf(protocol.RequestProcessingError, "genesis root hash mismatch: computed %s, proposed %s", state.RootHash, wantRoot)
	}
	return genesis, nil
}

func (p *initParticipant) fail(code, explain string) {
	p.done = true
	p.res.OK = false
	p.res.Problem = &Problem{Code: code, Explain: explain}
	p.ctx.log.Warnf("initialize-ledger %q failed: %s: %s", p.ledgerName, code, explain)
}

func (p *initParticipant) dropLedger() {
	if !p.created {
		return
	}
	if err := p.ctx.ledgers.Delete(p.ledgerName); err != nil {
		p.ctx.log.Warnf("initialize-ledger %q: drop after abort: %v", p.ledgerName, err)
	}
}

func (p *initParticipant) result() Result { return p.res }
