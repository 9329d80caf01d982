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

// Package timers provides a Clock abstraction useful for simulating
// timeouts.
package timers

import (
	"time"
)

// Clock provides timeout events which fire at some point after a point in
// time.
type Clock interface {
	// Zero returns a reset Clock that fires timeouts relative to the
	// moment Zero was called.
	Zero() Clock

	// TimeoutAt returns a channel that fires delta time after the zero of
	// this clock. If delta has already passed, the channel fires
	// immediately.
	TimeoutAt(delta time.Duration) <-chan time.Time

	// Since returns the time elapsed since the zero of this clock.
	Since() time.Duration
}
