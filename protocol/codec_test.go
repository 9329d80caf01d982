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

package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sirius-social/go-microledger/test/partitiontest"
)

func TestEncodeJSONSortsKeys(t *testing.T) {
	partitiontest.PartitionTest(t)

	obj := map[string]interface{}{
		"zebra": 1,
		"alpha": 2,
		"nested": map[string]interface{}{
			"b": "x",
			"a": "y",
		},
	}
	require.Equal(t, `{"alpha":2,"nested":{"a":"y","b":"x"},"zebra":1}`, string(EncodeJSON(obj)))
}

func TestEncodeJSONIndependentOfInsertionOrder(t *testing.T) {
	partitiontest.PartitionTest(t)

	a := map[string]interface{}{}
	a["one"] = 1
	a["two"] = "2"
	b := map[string]interface{}{}
	b["two"] = "2"
	b["one"] = 1
	require.Equal(t, EncodeJSON(a), EncodeJSON(b))
}

func TestDecodeReencodeFixedPoint(t *testing.T) {
	partitiontest.PartitionTest(t)

	wire := []byte(`{"@type":"test","count":42,"items":["a","b"],"meta":{"flag":true,"weight":1.5}}`)
	var obj map[string]interface{}
	require.NoError(t, DecodeJSON(wire, &obj))
	require.Equal(t, wire, EncodeJSON(obj))

	// A second cycle must not drift either.
	var again map[string]interface{}
	require.NoError(t, DecodeJSON(EncodeJSON(obj), &again))
	require.Equal(t, wire, EncodeJSON(again))
}

func TestDecodeJSONIntoStruct(t *testing.T) {
	partitiontest.PartitionTest(t)

	type payload struct {
		Name  string `json:"name"`
		Count uint64 `json:"count"`
	}
	var p payload
	require.NoError(t, DecodeJSON([]byte(`{"count":7,"name":"genesis"}`), &p))
	require.Equal(t, payload{Name: "genesis", Count: 7}, p)
	require.Equal(t, `{"count":7,"name":"genesis"}`, string(EncodeJSON(p)))
}
