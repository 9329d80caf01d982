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

import "time"

// Config holds the tunables of the consensus service.
type Config struct {
	// TimeoutSec bounds each wait for the next message of a protocol run;
	// the deadline is rearmed after every message that advances the run.
	// Actors advertise it in their opening message; participants inherit
	// the advertised value.
	TimeoutSec uint64

	// MaxSkewSec bounds how far a signature timestamp may lie from local
	// time before the envelope is rejected.
	MaxSkewSec uint64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TimeoutSec: 60,
		MaxSkewSec: 300,
	}
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c Config) maxSkew() time.Duration {
	return time.Duration(c.MaxSkewSec) * time.Second
}
