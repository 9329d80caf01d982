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
	"time"

	"github.com/sirius-social/go-microledger/crypto"
	"github.com/sirius-social/go-microledger/ledger"
	"github.com/sirius-social/go-microledger/protocol"
)

// commitActor drives accept-block: it stages a batch on its ledger,
// collects a pre-commit from every participant over the resulting state
// hash, distributes the assembled pre-commit set, and commits once every
// participant has countersigned the commit message.
type commitActor struct {
	ctx  *machineContext
	thid string

	ledgerName   string
	txns         []ledger.Transaction
	participants []DID
	others       []DID
	timeout      uint64

	ml        *ledger.Microledger
	stateHash string

	pendingPre  map[DID]bool
	preCommits  map[string]crypto.SignedEnvelope
	pendingPost map[DID]bool
	postSigs    map[DID]crypto.SignedEnvelope

	commitPayload map[string]interface{}
	commitSig     crypto.SignedEnvelope

	res  Result
	done bool
}

func newCommitActor(ctx *machineContext, name string, txns []ledger.Transaction, participants []DID, timeout uint64) (*commitActor, error) {
	others, ok := othersOf(participants, ctx.me)
	if !ok {
		return nil, fmt.Errorf("own DID %q is not among the participants", ctx.me)
	}
	if len(others) == 0 {
		return nil, fmt.Errorf("accept-block needs at least one other participant")
	}
	if len(txns) == 0 {
		return nil, fmt.Errorf("accept-block needs a non-empty batch")
	}
	return &commitActor{
		ctx:          ctx,
		thid:         newID(),
		ledgerName:   name,
		txns:         txns,
		participants: participants,
		others:       others,
		timeout:      timeout,
		res:          Result{Ledger: name, Op: OpCommit},
	}, nil
}

func (a *commitActor) start() ([]outbound, error) {
	ml, err := a.ctx.ledgers.Ledger(a.ledgerName)
	if err != nil {
		return nil, err
	}
	state, err := ml.Stage(a.txns, a.ctx.now())
	if err != nil {
		return nil, err
	}
	a.ml = ml
	a.stateHash = state.Hash()
	a.pendingPre = make(map[DID]bool, len(a.others))
	for _, did := range a.others {
		a.pendingPre[did] = true
	}
	a.preCommits = make(map[string]crypto.SignedEnvelope, len(a.participants))
	a.res.ThID = a.thid

	propose := &ProposeMessage{
		Meta:         Meta{ID: a.thid},
		Timeout:      a.timeout,
		Participants: a.participants,
		Transactions: ml.UncommittedTransactions(),
		State:        state,
		Hash:         a.stateHash,
	}
	a.ctx.log.Infof("accept-block %q: proposing %d transactions", a.ledgerName, len(a.txns))
	return broadcast(a.others, EncodeMessage(protocol.StagePropose, propose)), nil
}

func (a *commitActor) step(ev event) ([]outbound, bool, error) {
	if a.done {
		return nil, true, nil
	}
	switch e := ev.(type) {
	case deadlineEvent:
		return a.abort(protocol.RequestProcessingError, "accept-block timed out"), true, nil
	case messageEvent:
		switch msg := e.Msg.Body.(type) {
		case *PreCommitMessage:
			return a.onPreCommit(e.From, msg)
		case *PostCommitMessage:
			return a.onPostCommit(e.From, msg)
		case *ProblemReportMessage:
			out := a.forwardAbort(e.From, msg)
			return out, true, nil
		}
	}
	return nil, false, nil
}

func (a *commitActor) onPreCommit(from DID, msg *PreCommitMessage) ([]outbound, bool, error) {
	if a.pendingPre == nil || !a.pendingPre[from] {
		return nil, false, nil
	}
	if msg.Hash != a.stateHash {
		return a.abort(protocol.ResponseProcessingError,
			fmt.Sprintf("participant %q computed state hash %s, want %s", from, msg.Hash, a.stateHash)), true, nil
	}
	if err := a.ctx.verifyEnvelope(msg.HashSig, from, protocol.EncodeJSON(a.stateHash)); err != nil {
		return a.abort(protocol.ResponseNotAccepted, err.Error()), true, nil
	}

	a.preCommits[string(from)] = msg.HashSig
	delete(a.pendingPre, from)
	a.ctx.log.Debugf("accept-block %q: pre-commit from %q, %d pending", a.ledgerName, from, len(a.pendingPre))
	if len(a.pendingPre) > 0 {
		return nil, false, nil
	}

	// Every participant pre-committed to the same state. The actor's own
	// pre-commit joins the set so each receiver can check the full quorum,
	// and the set travels under a signature over the commit body itself.
	a.preCommits[string(a.ctx.me)] = crypto.Sign(a.stateHash, a.ctx.secrets, a.ctx.now())
	commit := &CommitMessage{
		Meta:         Meta{ID: newID(), Thread: &Thread{ThID: a.thid}},
		Participants: a.participants,
		PreCommits:   a.preCommits,
	}
	a.commitPayload = messageMap(protocol.StageCommit, commit)
	delete(a.commitPayload, "commit~sig")
	a.commitSig = crypto.Sign(a.commitPayload, a.ctx.secrets, a.ctx.now())
	commit.CommitSig = &a.commitSig

	a.pendingPost = make(map[DID]bool, len(a.others))
	for _, did := range a.others {
		a.pendingPost[did] = true
	}
	a.postSigs = make(map[DID]crypto.SignedEnvelope, len(a.others))
	return broadcast(a.others, EncodeMessage(protocol.StageCommit, commit)), false, nil
}

func (a *commitActor) onPostCommit(from DID, msg *PostCommitMessage) ([]outbound, bool, error) {
	if a.pendingPost == nil || !a.pendingPost[from] {
		return nil, false, nil
	}
	payload := protocol.EncodeJSON(a.commitPayload)
	var sig *crypto.SignedEnvelope
	for i := range msg.Commits {
		if err := a.ctx.verifyEnvelope(msg.Commits[i], from, payload); err == nil {
			sig = &msg.Commits[i]
			break
		}
	}
	if sig == nil {
		return a.abort(protocol.ResponseNotAccepted,
			fmt.Sprintf("participant %q sent no valid commit signature", from)), true, nil
	}

	a.postSigs[from] = *sig
	delete(a.pendingPost, from)
	a.ctx.log.Debugf("accept-block %q: post-commit from %q, %d pending", a.ledgerName, from, len(a.pendingPost))
	if len(a.pendingPost) > 0 {
		return nil, false, nil
	}

	_, batch, err := a.ml.CommitStaged()
	if err != nil {
		return a.abort(protocol.RequestProcessingError, fmt.Sprintf("commit batch: %v", err)), true, nil
	}

	qc := make([]crypto.SignedEnvelope, 0, len(a.participants))
	for _, did := range a.others {
		qc = append(qc, a.postSigs[did])
	}
	qc = append(qc, a.commitSig)

	final := &PostCommitMessage{
		Meta:    Meta{ID: newID(), Thread: &Thread{ThID: a.thid}},
		Commits: qc,
	}
	a.done = true
	a.res.OK = true
	a.res.Txns = batch
	a.res.QuorumCertificate = qc
	a.ctx.log.Infof("accept-block %q: committed %d transactions", a.ledgerName, len(batch))
	return broadcast(a.others, EncodeMessage(protocol.StagePostCommit, final)), true, nil
}

// forwardAbort handles a participant's problem_report: the round is dead,
// so relay the report to the remaining participants and roll back.
func (a *commitActor) forwardAbort(from DID, msg *ProblemReportMessage) []outbound {
	a.fail(string(msg.ProblemCode), msg.Explain)
	a.rollback()
	var rest []DID
	for _, did := range a.others {
		if did != from {
			rest = append(rest, did)
		}
	}
	return broadcast(rest, problemReport(a.thid, msg.ProblemCode, msg.Explain))
}

func (a *commitActor) abort(code protocol.ProblemCode, explain string) []outbound {
	a.fail(string(code), explain)
	a.rollback()
	return broadcast(a.others, problemReport(a.thid, code, explain))
}

func (a *commitActor) fail(code, explain string) {
	a.done = true
	a.res.OK = false
	a.res.Problem = &Problem{Code: code, Explain: explain}
	a.ctx.log.Warnf("accept-block %q failed: %s: %s", a.ledgerName, code, explain)
}

func (a *commitActor) rollback() {
	if a.ml != nil {
		a.ml.DiscardStaged()
	}
}

func (a *commitActor) result() Result { return a.res }

// commitParticipant is the ratifying side of accept-block. Once it commits
// at the commit stage it is bound: later reports or timeouts no longer
// roll the batch back, and divergence surfaces on the next proposal
// through the state size check.
type commitParticipant struct {
	ctx  *machineContext
	thid string

	actor      DID
	ledgerName string
	ml         *ledger.Microledger
	stateHash  string
	ownPre     crypto.SignedEnvelope
	staged     bool
	committed  bool

	res  Result
	done bool
}

func newCommitParticipant(ctx *machineContext, actor DID, thid string) *commitParticipant {
	return &commitParticipant{
		ctx:   ctx,
		thid:  thid,
		actor: actor,
		res:   Result{ThID: thid, Op: OpCommit},
	}
}

func (p *commitParticipant) start() ([]outbound, error) { return nil, nil }

func (p *commitParticipant) step(ev event) ([]outbound, bool, error) {
	if p.done {
		return nil, true, nil
	}
	switch e := ev.(type) {
	case deadlineEvent:
		if p.committed {
			p.done = true
			return nil, true, nil
		}
		p.fail(string(protocol.ResponseProcessingError), "accept-block timed out")
		p.rollback()
		return []outbound{{To: p.actor, Payload: problemReport(p.thid, protocol.ResponseProcessingError, "accept-block timed out")}}, true, nil
	case messageEvent:
		if e.From != p.actor {
			return nil, false, nil
		}
		switch msg := e.Msg.Body.(type) {
		case *ProposeMessage:
			return p.onPropose(msg)
		case *CommitMessage:
			return p.onCommit(e.Msg, msg)
		case *PostCommitMessage:
			if !p.committed {
				return nil, false, nil
			}
			p.res.QuorumCertificate = msg.Commits
			p.done = true
			return nil, true, nil
		case *ProblemReportMessage:
			if p.committed {
				// The batch is already durable here; the report only ends
				// the thread.
				p.done = true
				return nil, true, nil
			}
			p.fail(string(msg.ProblemCode), msg.Explain)
			p.rollback()
			return nil, true, nil
		}
	}
	return nil, false, nil
}

func (p *commitParticipant) onPropose(msg *ProposeMessage) ([]outbound, bool, error) {
	if err := p.acceptPropose(msg); err != nil {
		ae, ok := err.(abortError)
		if !ok {
			ae = abortf(protocol.RequestProcessingError, "%v", err)
		}
		p.fail(string(ae.code), ae.explain)
		p.rollback()
		return []outbound{{To: p.actor, Payload: problemReport(p.thid, ae.code, ae.explain)}}, true, nil
	}

	p.ownPre = crypto.Sign(p.stateHash, p.ctx.secrets, p.ctx.now())
	pre := &PreCommitMessage{
		Meta:    Meta{ID: newID(), Thread: &Thread{ThID: p.thid}},
		Hash:    p.stateHash,
		HashSig: p.ownPre,
	}
	p.ctx.log.Infof("accept-block %q: pre-committing to state %s", p.ledgerName, p.stateHash)
	return []outbound{{To: p.actor, Payload: EncodeMessage(protocol.StagePreCommit, pre)}}, false, nil
}

func (p *commitParticipant) acceptPropose(msg *ProposeMessage) error {
	if _, ok := othersOf(msg.Participants, p.ctx.me); !ok {
		return abortf(protocol.RequestNotAccepted, "own DID is not among the participants")
	}
	name := msg.State.Name
	if name == "" {
		return abortf(protocol.RequestNotAccepted, "proposal names no ledger")
	}
	p.ledgerName = name
	p.res.Ledger = name

	ml, err := p.ctx.ledgers.Ledger(name)
	if err != nil {
		return abortf(protocol.RequestNotAccepted, "%v", err)
	}
	p.ml = ml
	if size := ml.Size(); size != msg.State.Size {
		return abortf(protocol.RequestProcessingError,
			"committed size mismatch: local %d, proposed %d", size, msg.State.Size)
	}

	// Transactions arrive stamped; staging with a zero time keeps the
	// proposer's txnTime so both sides hash identical encodings.
	state, err := ml.Stage(msg.Transactions, time.Time{})
	if err != nil {
		return abortf(protocol.RequestProcessingError, "%v", err)
	}
	p.staged = true
	p.stateHash = state.Hash()
	if p.stateHash != msg.Hash {
		return abortf(protocol.RequestProcessingError,
			"state hash mismatch: computed %s, proposed %s", p.stateHash, msg.Hash)
	}
	return nil
}

func (p *commitParticipant) onCommit(env Message, msg *CommitMessage) ([]outbound, bool, error) {
	if !p.staged || p.committed {
		return nil, false, nil
	}
	payload := make(map[string]interface{}, len(env.Raw))
	for k, v := range env.Raw {
		if k != "commit~sig" {
			payload[k] = v
		}
	}
	payloadBytes := protocol.EncodeJSON(payload)

	if msg.CommitSig == nil {
		return p.reject(protocol.RequestNotAccepted, "commit message carries no commit~sig")
	}
	if err := p.ctx.verifyEnvelope(*msg.CommitSig, p.actor, payloadBytes); err != nil {
		return p.reject(protocol.RequestNotAccepted, err.Error())
	}
	own, ok := msg.PreCommits[string(p.ctx.me)]
	if !ok || own.Signature != p.ownPre.Signature {
		return p.reject(protocol.RequestNotAccepted, "own pre-commit missing from the assembled set")
	}
	for _, did := range msg.Participants {
		if _, ok := msg.PreCommits[string(did)]; !ok {
			return p.reject(protocol.RequestNotAccepted,
				fmt.Sprintf("pre-commit of %q missing from the assembled set", did))
		}
	}
	hashBytes := protocol.EncodeJSON(p.stateHash)
	for didStr, sig := range msg.PreCommits {
		if DID(didStr) == p.ctx.me {
			continue
		}
		if err := p.ctx.verifyEnvelope(sig, DID(didStr), hashBytes); err != nil {
			return p.reject(protocol.RequestNotAccepted, fmt.Sprintf("pre-commit of %q: %v", didStr, err))
		}
	}

	_, batch, err := p.ml.CommitStaged()
	if err != nil {
		return p.reject(protocol.RequestProcessingError, fmt.Sprintf("commit batch: %v", err))
	}
	p.committed = true
	p.res.OK = true
	p.res.Txns = batch
	p.ctx.log.Infof("accept-block %q: committed %d transactions", p.ledgerName, len(batch))

	sig := crypto.Sign(payload, p.ctx.secrets, p.ctx.now())
	post := &PostCommitMessage{
		Meta:    Meta{ID: newID(), Thread: &Thread{ThID: p.thid}},
		Commits: []crypto.SignedEnvelope{sig},
	}
	return []outbound{{To: p.actor, Payload: EncodeMessage(protocol.StagePostCommit, post)}}, false, nil
}

func (p *commitParticipant) reject(code protocol.ProblemCode, explain string) ([]outbound, bool, error) {
	p.fail(string(code), explain)
	p.rollback()
	return []outbound{{To: p.actor, Payload: problemReport(p.thid, code, explain)}}, true, nil
}

func (p *commitParticipant) fail(code, explain string) {
	p.done = true
	p.res.OK = false
	p.res.Problem = &Problem{Code: code, Explain: explain}
	p.ctx.log.Warnf("accept-block %q failed: %s: %s", p.ledgerName, code, explain)
}

func (p *commitParticipant) rollback() {
	if p.staged && p.ml != nil {
		p.ml.DiscardStaged()
	}
}

func (p *commitParticipant) result() Result { return p.res }
