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
	"strings"
	"sync"

	"github.com/dolthub/accountdb/hash"
)

// MemoryStorage provides a "persistent" storage layer to back multiple
// MemoryStoreViews. A MemoryStorage instance holds the ground truth for the
// refs and the set of chunks of all MemoryStoreViews vended by NewView(),
// allowing them to implement the transaction-style semantics that
// ChunkStore requires.
type MemoryStorage struct {
	data map[hash.Hash]Chunk
	refs map[string]hash.Hash
	mu   sync.RWMutex
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		data: map[hash.Hash]Chunk{},
		refs: map[string]hash.Hash{},
	}
}

// NewView vends a MemoryStoreView backed by this MemoryStorage. Each view
// keeps its own Stats.
func (ms *MemoryStorage) NewView() *MemoryStoreView {
	return &MemoryStoreView{storage: ms}
}

// Len returns the number of chunks in storage.
func (ms *MemoryStorage) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.data)
}

func (ms *MemoryStorage) get(h hash.Hash) Chunk {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if c, ok := ms.data[h]; ok {
		return c
	}
	return EmptyChunk
}

func (ms *MemoryStorage) put(c Chunk) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, ok := ms.data[c.Hash()]; ok {
		return false
	}
	ms.data[c.Hash()] = c
	return true
}

func (ms *MemoryStorage) ref(name string) hash.Hash {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.refs[name]
}

func (ms *MemoryStorage) refsWithPrefix(prefix string) map[string]hash.Hash {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	out := make(map[string]hash.Hash)
	for name, h := range ms.refs {
		if strings.HasPrefix(name, prefix) {
			out[name] = h
		}
	}
	return out
}

func (ms *MemoryStorage) commitRefs(updates []RefUpdate) []string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	conflicts, _ := CheckRefUpdates(updates, func(name string) (hash.Hash, error) {
		return ms.refs[name], nil
	})
	if len(conflicts) > 0 {
		return conflicts
	}
	for _, u := range updates {
		if u.New.IsEmpty() {
			delete(ms.refs, u.Name)
		} else {
			ms.refs[u.Name] = u.New
		}
	}
	return nil
}

// MemoryStoreView is an in-memory implementation of ChunkStore. Useful
// mainly for tests.
type MemoryStoreView struct {
	storage *MemoryStorage
	stats   StatsCounter
}

var _ ChunkStore = (*MemoryStoreView)(nil)

// NewMemoryStore returns a view over a fresh MemoryStorage.
func NewMemoryStore() *MemoryStoreView {
	return NewMemoryStorage().NewView()
}

// Storage returns the MemoryStorage backing this view.
func (ms *MemoryStoreView) Storage() *MemoryStorage {
	return ms.storage
}

func (ms *MemoryStoreView) Get(ctx context.Context, h hash.Hash) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return EmptyChunk, err
	}
	c := ms.storage.get(h)
	ms.stats.ChunkRead(!c.IsEmpty())
	return c, nil
}

func (ms *MemoryStoreView) Has(ctx context.Context, h hash.Hash) (bool, error) {
	c, err := ms.Get(ctx, h)
	if err != nil {
		return false, err
	}
	return !c.IsEmpty(), nil
}

func (ms *MemoryStoreView) Put(ctx context.Context, c Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ms.storage.put(c) {
		ms.stats.ChunkWritten(c.Size())
	}
	return nil
}

func (ms *MemoryStoreView) Ref(ctx context.Context, name string) (hash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return hash.Hash{}, err
	}
	ms.stats.RefRead()
	return ms.storage.ref(name), nil
}

func (ms *MemoryStoreView) Refs(ctx context.Context, prefix string) (map[string]hash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms.stats.RefRead()
	return ms.storage.refsWithPrefix(prefix), nil
}

func (ms *MemoryStoreView) CommitRefs(ctx context.Context, updates []RefUpdate) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateRefUpdates(updates); err != nil {
		return nil, err
	}
	conflicts := ms.storage.commitRefs(updates)
	ms.stats.RefCommit(len(conflicts) > 0)
	return conflicts, nil
}

func (ms *MemoryStoreView) Stats() Stats {
	return ms.stats.Snapshot()
}

func (ms *MemoryStoreView) Close() error {
	return nil
}
