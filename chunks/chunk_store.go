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
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dolthub/accountdb/hash"
)

// ErrInvalidRefUpdate is returned by CommitRefs when a batch of updates is
// malformed. Nothing is written.
var ErrInvalidRefUpdate = errors.New("invalid ref update")

// ChunkStore is the core storage abstraction: immutable chunks addressed by
// hash plus a set of named, mutable refs.
type ChunkStore interface {
	ChunkSource
	ChunkSink
	RefTracker

	// Stats returns the counters accumulated by this store.
	Stats() Stats

	io.Closer
}

// ChunkSource is a place to get chunks from.
type ChunkSource interface {
	// Get the Chunk for the value of the hash in the store. If the hash is
	// absent from the store EmptyChunk is returned.
	Get(ctx context.Context, h hash.Hash) (Chunk, error)

	// Has returns true iff the value at the address |h| is contained in the
	// store.
	Has(ctx context.Context, h hash.Hash) (bool, error)
}

// ChunkSink is a place to put chunks.
type ChunkSink interface {
	// Put writes c. Upon return, c must be visible to subsequent Get and Has
	// calls. Putting a chunk that is already present is a no-op.
	Put(ctx context.Context, c Chunk) error
}

// RefUpdate is one compare-and-swap on a named ref. An empty Old requires
// the ref to be absent; an empty New deletes the ref.
type RefUpdate struct {
	Name string
	Old  hash.Hash
	New  hash.Hash
}

func (u RefUpdate) String() string {
	return fmt.Sprintf("%s: %s -> %s", u.Name, u.Old, u.New)
}

// RefTracker manages the named refs of a store.
type RefTracker interface {
	// Ref returns the current value of the named ref, or the empty hash if
	// it does not exist.
	Ref(ctx context.Context, name string) (hash.Hash, error)

	// Refs returns every ref whose name starts with |prefix|.
	Refs(ctx context.Context, prefix string) (map[string]hash.Hash, error)

	// CommitRefs atomically applies |updates|. Either every update's Old
	// matches the live value and all are applied, or none is applied and
	// the names of the mismatched refs are returned in |conflicts|.
	CommitRefs(ctx context.Context, updates []RefUpdate) (conflicts []string, err error)
}

// UpdateRef is a single-ref convenience over CommitRefs. It returns false if
// the ref no longer has the value |old|.
func UpdateRef(ctx context.Context, rt RefTracker, name string, old, new hash.Hash) (bool, error) {
	conflicts, err := rt.CommitRefs(ctx, []RefUpdate{{Name: name, Old: old, New: new}})
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// ValidateRefUpdates checks that every update names a ref and that no ref is
// named twice.
func ValidateRefUpdates(updates []RefUpdate) error {
	seen := make(map[string]struct{}, len(updates))
	for _, u := range updates {
		if u.Name == "" {
			return fmt.Errorf("%w: empty ref name", ErrInvalidRefUpdate)
		}
		if _, ok := seen[u.Name]; ok {
			return fmt.Errorf("%w: ref %s updated twice", ErrInvalidRefUpdate, u.Name)
		}
		seen[u.Name] = struct{}{}
	}
	return nil
}

// CheckRefUpdates compares each update's Old with the value reported by
// |current| and returns the names of the refs that differ. Backends call it
// while holding whatever lock or transaction makes the subsequent write
// atomic.
func CheckRefUpdates(updates []RefUpdate, current func(name string) (hash.Hash, error)) ([]string, error) {
	var conflicts []string
	for _, u := range updates {
		live, err := current(u.Name)
		if err != nil {
			return nil, err
		}
		if live != u.Old {
			conflicts = append(conflicts, u.Name)
		}
	}
	return conflicts, nil
}
