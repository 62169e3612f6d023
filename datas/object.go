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

package datas

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/hash"
)

// Kind identifies the type of a stored object. It is the first byte of every
// object's encoding.
type Kind byte

const (
	BlobKind   Kind = 'b'
	TreeKind   Kind = 't'
	CommitKind Kind = 'c'
)

func (k Kind) String() string {
	switch k {
	case BlobKind:
		return "blob"
	case TreeKind:
		return "tree"
	case CommitKind:
		return "commit"
	}
	return fmt.Sprintf("unknown(%d)", byte(k))
}

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrWrongKind      = errors.New("object has unexpected kind")
)

func encodeObject(k Kind, payload []byte) chunks.Chunk {
	data := make([]byte, 0, len(payload)+1)
	data = append(data, byte(k))
	data = append(data, payload...)
	return chunks.NewChunk(data)
}

func decodeObject(c chunks.Chunk, h hash.Hash, want Kind) ([]byte, error) {
	if c.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, h)
	}
	data := c.Data()
	if Kind(data[0]) != want {
		return nil, fmt.Errorf("%w: %s is a %s, not a %s", ErrWrongKind, h, Kind(data[0]), want)
	}
	return data[1:], nil
}

// TreeEntry is one named member of a Tree.
type TreeEntry struct {
	Name string    `json:"name"`
	Kind Kind      `json:"kind"`
	Hash hash.Hash `json:"hash"`
}

// Tree is an immutable, name-sorted list of entries.
type Tree struct {
	entries []TreeEntry
}

// EmptyTree has no entries.
var EmptyTree = Tree{}

// NewTree returns a Tree holding |entries|. Later entries replace earlier
// entries with the same name.
func NewTree(entries ...TreeEntry) Tree {
	byName := make(map[string]TreeEntry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}
	sorted := make([]TreeEntry, 0, len(byName))
	for _, e := range byName {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return Tree{entries: sorted}
}

func (t Tree) Len() int {
	return len(t.entries)
}

func (t Tree) IsEmpty() bool {
	return len(t.entries) == 0
}

// Entries returns a copy of the entries in name order.
func (t Tree) Entries() []TreeEntry {
	return append([]TreeEntry(nil), t.entries...)
}

// Get returns the entry called |name|.
func (t Tree) Get(name string) (TreeEntry, bool) {
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Name >= name
	})
	if i < len(t.entries) && t.entries[i].Name == name {
		return t.entries[i], true
	}
	return TreeEntry{}, false
}

// Equals reports whether two trees have identical entries.
func (t Tree) Equals(other Tree) bool {
	if len(t.entries) != len(other.entries) {
		return false
	}
	for i := range t.entries {
		if t.entries[i] != other.entries[i] {
			return false
		}
	}
	return true
}

func (t Tree) chunk() chunks.Chunk {
	entries := t.entries
	if entries == nil {
		entries = []TreeEntry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		panic(err)
	}
	return encodeObject(TreeKind, payload)
}

// Hash returns the address the tree is stored at.
func (t Tree) Hash() hash.Hash {
	return t.chunk().Hash()
}

func decodeTree(c chunks.Chunk, h hash.Hash) (Tree, error) {
	payload, err := decodeObject(c, h, TreeKind)
	if err != nil {
		return Tree{}, err
	}
	var entries []TreeEntry
	if err := json.NewDecoder(bytes.NewReader(payload)).Decode(&entries); err != nil {
		return Tree{}, fmt.Errorf("decoding tree %s: %w", h, err)
	}
	if len(entries) == 0 {
		entries = nil
	}
	return Tree{entries: entries}, nil
}
