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

	"github.com/algorand/go-deadlock"
)

// Monotonic uses the system's monotonic clock to emit timeouts.
type Monotonic struct {
	zero     time.Time
	mu       deadlock.Mutex
	timeouts map[time.Duration]<-chan time.Time
}

// MakeMonotonicClock creates a new monotonic clock with a given zero point.
func MakeMonotonicClock(zero time.Time) Clock {
	return &Monotonic{zero: zero}
}

// Zero returns a new Clock reset to the current time.
func (m *Monotonic) Zero() Clock {
	return MakeMonotonicClock(time.Now())
}

// TimeoutAt returns a channel that will signal when the duration has
// elapsed. Repeated calls with the same delta share one underlying timer.
func (m *Monotonic) TimeoutAt(delta time.Duration) <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timeouts == nil {
		m.timeouts = make(map[time.Duration]<-chan time.Time)
	}
	if ch, ok := m.timeouts[delta]; ok {
		return ch
	}

	target := m.zero.Add(delta)
	left := time.Until(target)
	var ch <-chan time.Time
	if left <= 0 {
		closed := make(chan time.Time)
		close(closed)
		ch = closed
	} else {
		ch = time.After(left)
	}
	m.timeouts[delta] = ch
	return ch
}

// Since returns the time that has passed between the zero of the clock and
// now.
func (m *Monotonic) Since() time.Duration {
	return time.Since(m.zero)
}

func (m *Monotonic) String() string {
	return m.zero.String()
}
