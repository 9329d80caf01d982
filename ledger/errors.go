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

package ledger

import "fmt"

// AlreadyExistsError is returned when creating a ledger whose name is
// taken.
type AlreadyExistsError struct {
	Name string
}

func (e AlreadyExistsError) Error() string {
	return fmt.Sprintf("ledger %q already exists", e.Name)
}

// NotFoundError is returned when a named ledger does not exist.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("ledger %q not found", e.Name)
}

// SeqNoConflictError is returned when an incoming transaction carries a
// sequence number that does not extend the ledger densely.
type SeqNoConflictError struct {
	Name     string
	Expected uint64
	Got      uint64
}

func (e SeqNoConflictError) Error() string {
	return fmt.Sprintf("ledger %q: expected seqNo %d, got %d", e.Name, e.Expected, e.Got)
}

// InvalidGenesisError is returned when a genesis block cannot initialize a
// ledger.
type InvalidGenesisError struct {
	Reason string
}

func (e InvalidGenesisError) Error() string {
	return fmt.Sprintf("invalid genesis: %s", e.Reason)
}
