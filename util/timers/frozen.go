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

package timers

import (
	"time"
)

// Frozen is a dummy frozen clock that never fires, so no deadline taken
// from it ever goes off.
type Frozen struct {
	timeoutCh chan time.Time
}

// MakeFrozenClock creates a new frozen clock.
func MakeFrozenClock() Clock {
	return &Frozen{timeoutCh: make(chan time.Time)}
}

// Zero returns a new frozen clock.
func (f *Frozen) Zero() Clock {
	return MakeFrozenClock()
}

// TimeoutAt returns a channel that will never fire.
func (f *Frozen) TimeoutAt(time.Duration) <-chan time.Time {
	return f.timeoutCh
}

// Since always reports zero elapsed time.
func (f *Frozen) Since() time.Duration {
	return 0
}

func (f *Frozen) String() string {
	return "frozen"
}
