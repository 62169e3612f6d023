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

// Package index keeps a secondary index of accounts consistent with the
// account store. It holds the boundary to the index implementation, the
// reindexer and the staleness check.
package index

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dolthub/accountdb/account"
	"github.com/dolthub/accountdb/hash"
)

// Document is what the secondary index stores for one account.
type Document struct {
	AccountID account.ID
	// MetaID is the account commit the document was derived from.
	MetaID hash.Hash
	// ExternalIDs maps each of the account's keys to its note address.
	ExternalIDs map[string]hash.Hash

	FullName    string
	DisplayName string
	Emails      []string
	Usernames   []string
	Active      bool
}

// Store is implemented by the secondary index.
type Store interface {
	Replace(ctx context.Context, doc Document) error
	// Get returns the document for |id|. The second return is false if the
	// account is not indexed.
	Get(ctx context.Context, id account.ID) (Document, bool, error)
	Delete(ctx context.Context, id account.ID) error
}

// MemoryStore is a Store kept in memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[account.ID]Document
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[account.ID]Document)}
}

func (ms *MemoryStore) Replace(_ context.Context, doc Document) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.docs[doc.AccountID] = doc
	return nil
}

func (ms *MemoryStore) Get(_ context.Context, id account.ID) (Document, bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	doc, ok := ms.docs[id]
	return doc, ok, nil
}

func (ms *MemoryStore) Delete(_ context.Context, id account.ID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.docs, id)
	return nil
}

func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.docs)
}

// Query returns the IDs of the indexed accounts whose name, email or
// username contains |term|, ignoring case.
func (ms *MemoryStore) Query(term string) []account.ID {
	term = strings.ToLower(term)
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	var out []account.ID
	for id, doc := range ms.docs {
		if doc.matches(term) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (doc Document) matches(term string) bool {
	fields := append([]string{doc.FullName, doc.DisplayName}, doc.Emails...)
	fields = append(fields, doc.Usernames...)
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}
