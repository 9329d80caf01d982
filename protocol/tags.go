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

// Package protocol defines the wire-level constants of the simple-consensus
// protocol family and the canonical JSON codec that every signable payload
// goes through.
package protocol

// MessageType is the value of the "@type" field of a protocol message.
type MessageType string

// ConsensusPrefix is the URI prefix shared by all simple-consensus messages.
const ConsensusPrefix = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/simple-consensus/1.0/"

// Message types of the simple-consensus protocol.
const (
	InitializeRequest  MessageType = ConsensusPrefix + "initialize-request"
	InitializeResponse MessageType = ConsensusPrefix + "initialize-response"
	StagePropose       MessageType = ConsensusPrefix + "stage-propose"
	StagePreCommit     MessageType = ConsensusPrefix + "stage-pre-commit"
	StageCommit        MessageType = ConsensusPrefix + "stage-commit"
	StagePostCommit    MessageType = ConsensusPrefix + "stage-post-commit"
	ProblemReport      MessageType = ConsensusPrefix + "problem_report"
)

// Ack closes the initialize-ledger happy path (aries notification family).
const Ack MessageType = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/notification/1.0/ack"

// SignatureType is the "@type" of the detached signature decorator.
const SignatureType = "did:sov:BzCbsNYhMrjHiqZDTUASHg;spec/signature/1.0/ed25519Sha512_single"

// ProblemCode classifies a problem_report. The set is part of the external
// contract and must stay stable.
type ProblemCode string

// Stable problem codes.
const (
	RequestNotAccepted      ProblemCode = "request_not_accepted"
	RequestProcessingError  ProblemCode = "request_processing_error"
	ResponseNotAccepted     ProblemCode = "response_not_accepted"
	ResponseProcessingError ProblemCode = "response_processing_error"
)
