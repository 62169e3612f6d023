// Copyright 2026 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// This file incorporates work covered by the following copyright and
// permission notice:
//
// Copyright 2016 Attic Labs, Inc. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

package chunks

import (
	"errors"
	"fmt"

	"github.com/golang/snappy"

	"github.com/dolthub/accountdb/hash"
)

/*
  Persisted chunk layout:
    Key   // backend specific, derived from the 20-byte hash
    Value // snappy block encoding of the chunk data

  Refs are persisted as the raw 20 hash bytes.
*/

// ErrCorruptChunk is returned when persisted chunk data does not hash to the
// address it was stored under.
var ErrCorruptChunk = errors.New("corrupt chunk")

// EncodeChunk returns the persisted form of c.
func EncodeChunk(c Chunk) []byte {
	return snappy.Encode(nil, c.Data())
}

// DecodeChunk decodes a persisted chunk and verifies it against |h|.
func DecodeChunk(h hash.Hash, persisted []byte) (Chunk, error) {
	data, err := snappy.Decode(nil, persisted)
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: %s: %v", ErrCorruptChunk, h, err)
	}
	c := NewChunk(data)
	if c.Hash() != h {
		return Chunk{}, fmt.Errorf("%w: %s hashes to %s", ErrCorruptChunk, h, c.Hash())
	}
	return c, nil
}

// EncodeRef returns the persisted form of a ref value.
func EncodeRef(h hash.Hash) []byte {
	out := make([]byte, hash.ByteLen)
	copy(out, h[:])
	return out
}

// DecodeRef decodes a persisted ref value.
func DecodeRef(b []byte) (hash.Hash, error) {
	if len(b) != hash.ByteLen {
		return hash.Hash{}, fmt.Errorf("invalid ref value of length %d", len(b))
	}
	return hash.New(b), nil
}
