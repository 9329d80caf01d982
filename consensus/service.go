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

// Package consensus implements the simple-consensus protocol family over
// microledgers: a three-step initialize-ledger exchange that ratifies a
// genesis block, and a four-stage accept-block round (propose, pre-commit,
// commit, post-commit) that appends a batch under unanimous agreement.
package consensus

import (
	"context"
	"fmt"
	"time"

	"github.com/algorand/go-deadlock"

	"github.com/sirius-social/go-microledger/crypto"
	"github.com/sirius-social/go-microledger/ledger"
	"github.com/sirius-social/go-microledger/logging"
	"github.com/sirius-social/go-microledger/protocol"
	"github.com/sirius-social/go-microledger/util/timers"
)

// Resolver maps participant DIDs to their current verkeys.
type Resolver interface {
	VerkeyOf(did DID) (crypto.Verkey, error)
}

// Transport delivers wire envelopes to participants. Send is best-effort;
// the protocol's deadlines own the failure handling.
type Transport interface {
	Send(to DID, envelope []byte) error
}

// Handler observes completed runs this service participated in (as opposed
// to runs it drove, whose results return from the actor calls directly).
type Handler func(Result)

// inboxSize bounds a run's queued events. The protocol exchanges a handful
// of messages per run, so depth here only absorbs bursts of duplicates.
const inboxSize = 64

// completedRetention is how many finished threads keep their replay caches.
const completedRetention = 128

// Service hosts consensus runs: it spawns an actor machine per local
// request and a participant machine per inbound thread, routes messages by
// thread id, and enforces one live run per ledger.
type Service struct {
	cfg       Config
	me        DID
	secrets   *crypto.SignatureSecrets
	resolver  Resolver
	transport Transport
	ledgers   *ledger.List
	log       logging.Logger
	clock     timers.Clock

	mu          deadlock.Mutex
	runners     map[string]*runner
	ledgerOwner map[string]string
	handlers    map[string][]Handler
	completed   map[string]map[string][]outbound
	finished    []string
	closeCh     chan struct{}
	closed      bool
}

// New builds a Service. The zero fields of cfg fall back to defaults.
func New(cfg Config, me DID, secrets *crypto.SignatureSecrets, resolver Resolver, transport Transport, ledgers *ledger.List, log logging.Logger) *Service {
	if cfg.TimeoutSec == 0 {
		cfg.TimeoutSec = DefaultConfig().TimeoutSec
	}
	if cfg.MaxSkewSec == 0 {
		cfg.MaxSkewSec = DefaultConfig().MaxSkewSec
	}
	return &Service{
		cfg:         cfg,
		me:          me,
		secrets:     secrets,
		resolver:    resolver,
		transport:   transport,
		ledgers:     ledgers,
		log:         log.With("did", string(me)),
		clock:       timers.MakeMonotonicClock(time.Now()),
		runners:     make(map[string]*runner),
		ledgerOwner: make(map[string]string),
		handlers:    make(map[string][]Handler),
		completed:   make(map[string]map[string][]outbound),
		closeCh:     make(chan struct{}),
	}
}

// SetClock replaces the timeout clock. Call before any run starts.
func (s *Service) SetClock(c timers.Clock) {
	s.clock = c
}

// Close stops every live run without sending further messages. Runs that
// already committed keep their outcome; pending ones fail locally.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.closeCh)
	s.mu.Unlock()
}

// RegisterHandler subscribes to completed participant runs. An empty
// ledgerName subscribes to every ledger.
func (s *Service) RegisterHandler(ledgerName string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[ledgerName] = append(s.handlers[ledgerName], h)
}

func (s *Service) machineContext() *machineContext {
	return &machineContext{
		log:      s.log,
		me:       s.me,
		secrets:  s.secrets,
		resolver: s.resolver,
		ledgers:  s.ledgers,
		maxSkew:  s.cfg.maxSkew(),
		now:      time.Now,
	}
}

// InitializeLedger drives an initialize-ledger run: it creates the ledger
// from genesis locally and blocks until every participant ratified it, the
// run aborted, or ctx expired.
func (s *Service) InitializeLedger(ctx context.Context, name string, genesis []ledger.Transaction, participants []DID) (Result, error) {
	m, err := newInitActor(s.machineContext(), name, genesis, participants, s.cfg.TimeoutSec)
	if err != nil {
		return Result{}, err
	}
	return s.runActor(ctx, m, m.thid, name)
}

// CommitBlock drives an accept-block run over the named ledger and blocks
// until the batch committed, the run aborted, or ctx expired.
func (s *Service) CommitBlock(ctx context.Context, name string, txns []ledger.Transaction, participants []DID) (Result, error) {
	m, err := newCommitActor(s.machineContext(), name, txns, participants, s.cfg.TimeoutSec)
	if err != nil {
		return Result{}, err
	}
	return s.runActor(ctx, m, m.thid, name)
}

func (s *Service) runActor(ctx context.Context, m machine, thid, ledgerName string) (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("consensus service is closed")
	}
	if owner, busy := s.ledgerOwner[ledgerName]; busy {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("ledger %q is busy with run %s", ledgerName, owner)
	}
	r := s.newRunner(thid, ledgerName, m, s.cfg.TimeoutSec, false)
	s.ledgerOwner[ledgerName] = thid
	s.runners[thid] = r
	s.mu.Unlock()

	out, err := m.start()
	if err != nil {
		s.finalize(r, false)
		return Result{}, err
	}
	s.send(out)
	go r.loop()

	select {
	case <-r.doneCh:
		return m.result(), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Deliver feeds an inbound wire envelope into the service. Unknown threads
// that open with a request spawn a participant run; duplicates of already
// processed messages replay the stored reaction without reprocessing.
func (s *Service) Deliver(from DID, envelope []byte) error {
	msg, err := DecodeMessage(envelope)
	if err != nil {
		return err
	}
	meta := metaOf(msg.Body)
	thid := meta.ThreadID()
	if thid == "" {
		return fmt.Errorf("message %s has no thread id", msg.Type)
	}
	ev := messageEvent{From: from, Msg: msg}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("consensus service is closed")
	}
	if r, ok := s.runners[thid]; ok {
		s.mu.Unlock()
		select {
		case r.inbox <- ev:
		default:
			s.log.Warnf("run %s: inbox full, dropping %s", thid, msg.Type)
		}
		return nil
	}
	if cache, ok := s.completed[thid]; ok {
		replay := cache[meta.ID]
		s.mu.Unlock()
		s.send(replay)
		return nil
	}

	switch msg.Type {
	case protocol.InitializeRequest, protocol.StagePropose:
		return s.spawnParticipantLocked(from, thid, msg, ev)
	default:
		s.mu.Unlock()
		s.log.Debugf("ignoring %s for unknown thread %s", msg.Type, thid)
		return nil
	}
}

// spawnParticipantLocked is entered holding s.mu and releases it.
func (s *Service) spawnParticipantLocked(from DID, thid string, msg Message, ev messageEvent) error {
	var m machine
	var ledgerName string
	var timeout uint64

	switch body := msg.Body.(type) {
	case *InitLedgerMessage:
		ledgerName, _ = body.Ledger["name"].(string)
		timeout = body.Timeout
		m = newInitParticipant(s.machineContext(), from, thid)
	case *ProposeMessage:
		ledgerName = body.State.Name
		timeout = body.Timeout
		m = newCommitParticipant(s.machineContext(), from, thid)
	}
	if timeout == 0 {
		timeout = s.cfg.TimeoutSec
	}

	if owner, busy := s.ledgerOwner[ledgerName]; busy && ledgerName != "" {
		s.mu.Unlock()
		s.log.Warnf("rejecting %s for ledger %q: busy with run %s", msg.Type, ledgerName, owner)
		s.send([]outbound{{To: from, Payload: problemReport(thid, protocol.RequestNotAccepted,
			fmt.Sprintf("ledger %q is busy with another run", ledgerName))}})
		return nil
	}

	r := s.newRunner(thid, ledgerName, m, timeout, true)
	if ledgerName != "" {
		s.ledgerOwner[ledgerName] = thid
	}
	s.runners[thid] = r
	s.mu.Unlock()

	go r.loop()
	r.inbox <- ev
	return nil
}

func (s *Service) newRunner(thid, ledgerName string, m machine, timeoutSec uint64, participant bool) *runner {
	return &runner{
		svc:         s,
		thid:        thid,
		ledgerName:  ledgerName,
		m:           m,
		timeout:     time.Duration(timeoutSec) * time.Second,
		participant: participant,
		inbox:       make(chan messageEvent, inboxSize),
		doneCh:      make(chan struct{}),
		seen:        make(map[string][]outbound),
	}
}

func (s *Service) send(out []outbound) {
	for _, o := range out {
		if err := s.transport.Send(o.To, o.Payload); err != nil {
			s.log.Warnf("send to %q: %v", o.To, err)
		}
	}
}

func (s *Service) finalize(r *runner, notify bool) {
	res := r.m.result()

	s.mu.Lock()
	delete(s.runners, r.thid)
	name := r.ledgerName
	if name == "" {
		// A participant learns its ledger name from the opening message.
		name = res.Ledger
	}
	if s.ledgerOwner[name] == r.thid {
		delete(s.ledgerOwner, name)
	}
	s.completed[r.thid] = r.seen
	s.finished = append(s.finished, r.thid)
	if len(s.finished) > completedRetention {
		evict := s.finished[0]
		s.finished = s.finished[1:]
		delete(s.completed, evict)
	}
	var handlers []Handler
	if notify {
		handlers = append(handlers, s.handlers[name]...)
		handlers = append(handlers, s.handlers[""]...)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(res)
	}
	close(r.doneCh)
}

// runner owns one machine: a goroutine feeding it inbox messages and the
// run deadline, sending whatever the steps emit.
type runner struct {
	svc         *Service
	thid        string
	ledgerName  string
	m           machine
	timeout     time.Duration
	participant bool
	inbox       chan messageEvent
	doneCh      chan struct{}
	seen        map[string][]outbound
}

func (r *runner) loop() {
	deadline := r.svc.clock.Zero().TimeoutAt(r.timeout)

	for {
		select {
		case ev := <-r.inbox:
			id := metaOf(ev.Msg.Body).ID
			if replay, dup := r.seen[id]; dup {
				r.svc.log.Debugf("run %s: replaying reaction to duplicate %s", r.thid, id)
				r.svc.send(replay)
				continue
			}
			out, done, err := r.m.step(ev)
			if err != nil {
				r.svc.log.Errorf("run %s: %v", r.thid, err)
			}
			if id != "" {
				r.seen[id] = out
			}
			r.svc.send(out)
			if done {
				r.svc.finalize(r, r.participant)
				return
			}
			// The timeout bounds the wait for the next message, not the
			// whole run, so each processed stage rearms it.
			deadline = r.svc.clock.Zero().TimeoutAt(r.timeout)
		case <-deadline:
			out, done, _ := r.m.step(deadlineEvent{})
			r.svc.send(out)
			if done {
				r.svc.finalize(r, r.participant)
				return
			}
			deadline = nil
		case <-r.svc.closeCh:
			r.m.step(deadlineEvent{})
			r.svc.finalize(r, false)
			return
		}
	}
}

func metaOf(body interface{}) Meta {
	switch b := body.(type) {
	case *InitLedgerMessage:
		return b.Meta
	case *ProposeMessage:
		return b.Meta
	case *PreCommitMessage:
		return b.Meta
	case *CommitMessage:
		return b.Meta
	case *PostCommitMessage:
		return b.Meta
	case *ProblemReportMessage:
		return b.Meta
	case *AckMessage:
		return b.Meta
	}
	return Meta{}
}
