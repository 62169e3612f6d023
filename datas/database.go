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
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/hash"
)

var ErrOptimisticLockFailed = errors.New("optimistic lock failed on ref update")

// ConflictError is returned when a ref update loses a compare-and-swap race.
// It matches ErrOptimisticLockFailed under errors.Is.
type ConflictError struct {
	Refs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrOptimisticLockFailed.Error(), strings.Join(e.Refs, ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrOptimisticLockFailed
}

// Conflicts reports whether |ref| is among the refs that lost the race.
func (e *ConflictError) Conflicts(ref string) bool {
	for _, r := range e.Refs {
		if r == ref {
			return true
		}
	}
	return false
}

const defaultObjectCacheSize = 1 << 14

// Database provides typed access to the commits, trees and blobs kept in a
// ChunkStore, along with its refs. Decoded commits and trees are cached by
// address; they are immutable so entries never go stale.
type Database struct {
	cs    chunks.ChunkStore
	cache *lru.Cache[hash.Hash, any]
}

// NewDatabase returns a Database over |cs|. A non-positive |cacheSize| uses
// the default.
func NewDatabase(cs chunks.ChunkStore, cacheSize int) *Database {
	if cacheSize <= 0 {
		cacheSize = defaultObjectCacheSize
	}
	cache, err := lru.New[hash.Hash, any](cacheSize)
	if err != nil {
		panic(err)
	}
	return &Database{cs: cs, cache: cache}
}

func (db *Database) ChunkStore() chunks.ChunkStore {
	return db.cs
}

func (db *Database) Close() error {
	return db.cs.Close()
}

// ResolveRef returns the commit a ref points at, or the empty hash if the ref
// does not exist.
func (db *Database) ResolveRef(ctx context.Context, name string) (hash.Hash, error) {
	return db.cs.Ref(ctx, name)
}

// Refs returns every ref under |prefix|.
func (db *Database) Refs(ctx context.Context, prefix string) (map[string]hash.Hash, error) {
	return db.cs.Refs(ctx, prefix)
}

// CASUpdateRef moves |name| from |expectedOld| to |new|. It returns a
// *ConflictError if the ref has moved.
func (db *Database) CASUpdateRef(ctx context.Context, name string, expectedOld, new hash.Hash) error {
	return db.CommitRefs(ctx, []chunks.RefUpdate{{Name: name, Old: expectedOld, New: new}})
}

// CommitRefs applies |updates| atomically. It returns a *ConflictError naming
// every ref that had moved, in which case nothing was applied.
func (db *Database) CommitRefs(ctx context.Context, updates []chunks.RefUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	conflicts, err := db.cs.CommitRefs(ctx, updates)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &ConflictError{Refs: conflicts}
	}
	return nil
}

func (db *Database) WriteBlob(ctx context.Context, data []byte) (hash.Hash, error) {
	c := encodeObject(BlobKind, data)
	if err := db.cs.Put(ctx, c); err != nil {
		return hash.Hash{}, err
	}
	return c.Hash(), nil
}

func (db *Database) ReadBlob(ctx context.Context, h hash.Hash) ([]byte, error) {
	c, err := db.cs.Get(ctx, h)
	if err != nil {
		return nil, err
	}
	return decodeObject(c, h, BlobKind)
}

func (db *Database) WriteTree(ctx context.Context, t Tree) (hash.Hash, error) {
	c := t.chunk()
	if err := db.cs.Put(ctx, c); err != nil {
		return hash.Hash{}, err
	}
	db.cache.Add(c.Hash(), t)
	return c.Hash(), nil
}

func (db *Database) ReadTree(ctx context.Context, h hash.Hash) (Tree, error) {
	if v, ok := db.cache.Get(h); ok {
		if t, ok := v.(Tree); ok {
			return t, nil
		}
	}
	c, err := db.cs.Get(ctx, h)
	if err != nil {
		return Tree{}, err
	}
	t, err := decodeTree(c, h)
	if err != nil {
		return Tree{}, err
	}
	db.cache.Add(h, t)
	return t, nil
}

// WriteCommit stores a commit of |tree| with |parents|.
func (db *Database) WriteCommit(ctx context.Context, tree hash.Hash, parents []hash.Hash, meta CommitMeta) (Commit, error) {
	c, chk, err := newCommitChunk(tree, parents, meta)
	if err != nil {
		return Commit{}, err
	}
	if err := db.cs.Put(ctx, chk); err != nil {
		return Commit{}, err
	}
	db.cache.Add(c.Addr(), c)
	return c, nil
}

func (db *Database) ReadCommit(ctx context.Context, h hash.Hash) (Commit, error) {
	if v, ok := db.cache.Get(h); ok {
		if c, ok := v.(Commit); ok {
			return c, nil
		}
	}
	chk, err := db.cs.Get(ctx, h)
	if err != nil {
		return Commit{}, err
	}
	c, err := decodeCommit(chk, h)
	if err != nil {
		return Commit{}, err
	}
	db.cache.Add(h, c)
	return c, nil
}

// ReadCommitTree returns the root tree of commit |h|.
func (db *Database) ReadCommitTree(ctx context.Context, h hash.Hash) (Tree, error) {
	c, err := db.ReadCommit(ctx, h)
	if err != nil {
		return Tree{}, err
	}
	return db.ReadTree(ctx, c.Tree)
}

// Head returns the commit |ref| points at. The second return is false if the
// ref does not exist.
func (db *Database) Head(ctx context.Context, ref string) (Commit, bool, error) {
	h, err := db.ResolveRef(ctx, ref)
	if err != nil || h.IsEmpty() {
		return Commit{}, false, err
	}
	c, err := db.ReadCommit(ctx, h)
	if err != nil {
		return Commit{}, false, err
	}
	return c, true, nil
}

// ReadPath returns the blob at the slash-separated |path| below |t|.
func (db *Database) ReadPath(ctx context.Context, t Tree, path string) ([]byte, bool, error) {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		e, ok := t.Get(part)
		if !ok {
			return nil, false, nil
		}
		if i == len(parts)-1 {
			if e.Kind != BlobKind {
				return nil, false, nil
			}
			data, err := db.ReadBlob(ctx, e.Hash)
			return data, err == nil, err
		}
		if e.Kind != TreeKind {
			return nil, false, nil
		}
		var err error
		if t, err = db.ReadTree(ctx, e.Hash); err != nil {
			return nil, false, err
		}
	}
	return nil, false, nil
}

// WalkBlobs calls |cb| with the path and address of every blob below |t|, in
// path order.
func (db *Database) WalkBlobs(ctx context.Context, t Tree, cb func(path string, h hash.Hash) error) error {
	return db.walkBlobs(ctx, t, "", cb)
}

func (db *Database) walkBlobs(ctx context.Context, t Tree, prefix string, cb func(path string, h hash.Hash) error) error {
	for _, e := range t.entries {
		path := e.Name
		if prefix != "" {
			path = prefix + "/" + e.Name
		}
		switch e.Kind {
		case BlobKind:
			if err := cb(path, e.Hash); err != nil {
				return err
			}
		case TreeKind:
			sub, err := db.ReadTree(ctx, e.Hash)
			if err != nil {
				return err
			}
			if err := db.walkBlobs(ctx, sub, path, cb); err != nil {
				return err
			}
		}
	}
	return nil
}
