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

// Package hash implements the content address used for every object in the
// store. A Hash is the first 20 bytes of the blake3 digest of an object's
// bytes; its string form is 32 characters of base32.
package hash

import (
	"bytes"
	"encoding/base32"
	"fmt"
	"regexp"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/dolthub/accountdb/d"
)

const (
	// ByteLen is the number of bytes used to represent a Hash.
	ByteLen = 20

	// StringLen is the number of characters needed to represent a Hash as a string.
	StringLen = 32
)

var (
	pattern   = regexp.MustCompile("^([0-9a-v]{" + fmt.Sprintf("%d", StringLen) + "})$")
	encoding  = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)
	emptyHash = Hash{}
)

// Hash is the content address of an object.
type Hash [ByteLen]byte

// IsEmpty reports whether h is the zero Hash, which is used to mean "absent".
func (h Hash) IsEmpty() bool {
	return h == emptyHash
}

// String returns the base32 encoding of h.
func (h Hash) String() string {
	return encoding.EncodeToString(h[:])
}

// Less compares two Hashes byte-wise.
func (h Hash) Less(other Hash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

// Compare returns -1, 0 or 1.
func (h Hash) Compare(other Hash) int {
	return bytes.Compare(h[:], other[:])
}

// MarshalText implements encoding.TextMarshaler so that hashes serialize as
// their string form.
func (h Hash) MarshalText() ([]byte, error) {
	if h.IsEmpty() {
		return []byte{}, nil
	}
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*h = Hash{}
		return nil
	}
	parsed, ok := MaybeParse(string(text))
	if !ok {
		return fmt.Errorf("invalid hash: %q", string(text))
	}
	*h = parsed
	return nil
}

// New creates a Hash from a byte slice of length ByteLen.
func New(data []byte) Hash {
	d.PanicIfFalse(len(data) == ByteLen)
	var h Hash
	copy(h[:], data)
	return h
}

// Of computes the Hash of |data|.
func Of(data []byte) Hash {
	sum := blake3.Sum256(data)
	var h Hash
	copy(h[:], sum[:ByteLen])
	return h
}

// MaybeParse parses a string representing a hash. The second return value is
// false if the string is not a valid hash.
func MaybeParse(s string) (Hash, bool) {
	if !pattern.MatchString(s) {
		return emptyHash, false
	}
	data, err := encoding.DecodeString(s)
	if err != nil || len(data) != ByteLen {
		return emptyHash, false
	}
	return New(data), true
}

// Parse parses a string representing a hash and panics if it is invalid.
func Parse(s string) Hash {
	r, ok := MaybeParse(s)
	if !ok {
		d.PanicIfError(fmt.Errorf("could not parse Hash: %s", s))
	}
	return r
}

// HashSlice is a sortable slice of Hashes.
type HashSlice []Hash

func (rs HashSlice) Len() int {
	return len(rs)
}

func (rs HashSlice) Less(i, j int) bool {
	return rs[i].Less(rs[j])
}

func (rs HashSlice) Swap(i, j int) {
	rs[i], rs[j] = rs[j], rs[i]
}

// HashSet is a set of Hashes.
type HashSet map[Hash]struct{}

// NewHashSet returns a HashSet holding |hashes|.
func NewHashSet(hashes ...Hash) HashSet {
	out := make(HashSet, len(hashes))
	for _, h := range hashes {
		out.Insert(h)
	}
	return out
}

// Insert adds |h| to the set.
func (hs HashSet) Insert(h Hash) {
	hs[h] = struct{}{}
}

// Has reports whether |h| is in the set.
func (hs HashSet) Has(h Hash) bool {
	_, ok := hs[h]
	return ok
}

// Remove deletes |h| from the set.
func (hs HashSet) Remove(h Hash) {
	delete(hs, h)
}

// Sorted returns the members of the set in ascending order.
func (hs HashSet) Sorted() HashSlice {
	out := make(HashSlice, 0, len(hs))
	for h := range hs {
		out = append(out, h)
	}
	sort.Sort(out)
	return out
}
