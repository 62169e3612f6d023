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

// Package sequence allocates IDs from counters stored in refs.
package sequence

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/src-d/go-errors.v1"

	"github.com/dolthub/accountdb/datas"
	"github.com/dolthub/accountdb/hash"
	"github.com/dolthub/accountdb/ref"
	"github.com/dolthub/accountdb/util/retry"
)

// FirstAccountID is the first ID handed out for accounts.
const FirstAccountID = 1000000

var (
	// ErrInvalidValue is returned when the stored counter cannot be parsed.
	ErrInvalidValue = errors.NewKind("invalid value in sequence %s: %q")

	// ErrExhausted is returned when the counter cannot grow any further.
	ErrExhausted = errors.NewKind("sequence %s is exhausted")
)

// Allocator hands out IDs that are never handed out again.
type Allocator interface {
	Next(ctx context.Context) (int32, error)
}

// RepoSequence stores the next unreserved value as a blob the sequence ref
// points at. Values are reserved in batches; values reserved by a process
// that exits unused are skipped.
type RepoSequence struct {
	db        *datas.Database
	name      string
	start     int32
	batchSize int32
	retry     *retry.Helper

	mu    sync.Mutex
	next  int32
	limit int32
}

var _ Allocator = (*RepoSequence)(nil)

// NewRepoSequence returns a sequence kept in ref |name| whose first value is
// |start|.
func NewRepoSequence(db *datas.Database, name string, start, batchSize int32, helper *retry.Helper) *RepoSequence {
	if batchSize <= 0 {
		batchSize = 1
	}
	if helper == nil {
		helper = retry.NewHelper(retry.Options{})
	}
	return &RepoSequence{db: db, name: name, start: start, batchSize: batchSize, retry: helper}
}

// NewAccountSequence returns the sequence account IDs are allocated from.
func NewAccountSequence(db *datas.Database, batchSize int32, helper *retry.Helper) *RepoSequence {
	return NewRepoSequence(db, ref.SequenceAccounts, FirstAccountID, batchSize, helper)
}

// Next returns the next value.
func (s *RepoSequence) Next(ctx context.Context) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= s.limit {
		if err := s.reserve(ctx); err != nil {
			return 0, err
		}
	}
	v := s.next
	s.next++
	return v, nil
}

// Current returns the first value not yet reserved by any process.
func (s *RepoSequence) Current(ctx context.Context) (int32, error) {
	h, err := s.db.ResolveRef(ctx, s.name)
	if err != nil {
		return 0, err
	}
	return s.valueAt(ctx, h)
}

func (s *RepoSequence) valueAt(ctx context.Context, h hash.Hash) (int32, error) {
	if h.IsEmpty() {
		return s.start, nil
	}
	data, err := s.db.ReadBlob(ctx, h)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0, ErrInvalidValue.New(s.name, string(data))
	}
	return int32(v), nil
}

func (s *RepoSequence) reserve(ctx context.Context) error {
	return s.retry.Execute(ctx, retry.ActionSequence, func(ctx context.Context) error {
		old, err := s.db.ResolveRef(ctx, s.name)
		if err != nil {
			return err
		}
		cur, err := s.valueAt(ctx, old)
		if err != nil {
			return err
		}
		if int64(cur)+int64(s.batchSize) > math.MaxInt32 {
			return ErrExhausted.New(s.name)
		}
		limit := cur + s.batchSize
		h, err := s.db.WriteBlob(ctx, []byte(strconv.FormatInt(int64(limit), 10)))
		if err != nil {
			return err
		}
		if err := s.db.CASUpdateRef(ctx, s.name, old, h); err != nil {
			return err
		}
		s.next, s.limit = cur, limit
		return nil
	})
}
