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
	"reflect"

	"github.com/algorand/go-codec/codec"
)

// JSONHandle is used to instantiate canonical JSON encoders and decoders.
// Canonical here means sorted map keys, no insignificant whitespace, UTF-8
// passed through as-is, and integers encoded without a fraction part. Every
// signable or hashable payload in the protocol must be encoded with this
// handle; whatever a platform's default encoder does is irrelevant on the
// wire.
var JSONHandle *codec.JsonHandle

func init() {
	JSONHandle = new(codec.JsonHandle)
	JSONHandle.ErrorIfNoArrayExpand = true
	JSONHandle.Canonical = true
	JSONHandle.HTMLCharsAsIs = true
	JSONHandle.MapKeyAsString = true
	// Decode generic objects into map[string]interface{} so that a
	// decode/re-encode cycle is a fixed point.
	JSONHandle.MapType = reflect.TypeOf(map[string]interface{}(nil))
}

// EncodeJSON returns the canonical JSON encoding of obj.
func EncodeJSON(obj interface{}) []byte {
	var b []byte
	enc := codec.NewEncoderBytes(&b, JSONHandle)
	enc.MustEncode(obj)
	return b
}

// DecodeJSON attempts to decode a canonical JSON buffer into objptr.
func DecodeJSON(b []byte, objptr interface{}) error {
	dec := codec.NewDecoderBytes(b, JSONHandle)
	return dec.Decode(objptr)
}
