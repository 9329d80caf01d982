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

// Package partitiontest supports splitting the test suite across parallel
// CI jobs by hashing test names into buckets.
package partitiontest

import (
	"hash/fnv"
	"os"
	"strconv"
	"testing"
)

// PartitionTest checks if the current partition should run this test, and
// skips it otherwise. Set PARTITION_TOTAL and PARTITION_ID to split a run.
func PartitionTest(t *testing.T) {
	pt := os.Getenv("PARTITION_TOTAL")
	if pt == "" {
		return
	}
	total, err := strconv.Atoi(pt)
	if err != nil || total <= 0 {
		return
	}
	id := 0
	if pid := os.Getenv("PARTITION_ID"); pid != "" {
		id, err = strconv.Atoi(pid)
		if err != nil {
			return
		}
	}

	h := fnv.New32a()
	h.Write([]byte(t.Name()))
	if int(h.Sum32())%total != id {
		t.Skipf("skipping %s due to partitioning (total %d, id %d)", t.Name(), total, id)
	}
}
