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

// Package chunkstoretest holds the conformance suite every ChunkStore
// implementation is expected to pass.
package chunkstoretest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/suite"

	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/hash"
)

// ChunkStoreTestSuite runs the ChunkStore contract against stores produced
// by Factory. Factory is called once per test.
type ChunkStoreTestSuite struct {
	suite.Suite
	Factory func() chunks.ChunkStore

	store chunks.ChunkStore
}

func (suite *ChunkStoreTestSuite) SetupTest() {
	suite.store = suite.Factory()
}

func (suite *ChunkStoreTestSuite) TearDownTest() {
	suite.NoError(suite.store.Close())
}

func (suite *ChunkStoreTestSuite) assertInputInStore(input string, h hash.Hash) {
	c, err := suite.store.Get(context.Background(), h)
	suite.NoError(err)
	suite.False(c.IsEmpty(), "Shouldn't get empty chunk for %s", h.String())
	suite.Equal(input, string(c.Data()))
	suite.Equal(h, c.Hash())
}

func (suite *ChunkStoreTestSuite) TestChunkStorePut() {
	ctx := context.Background()
	input := "abc"
	c := chunks.NewChunk([]byte(input))
	suite.NoError(suite.store.Put(ctx, c))
	h := c.Hash()

	// Reading it via the API should work.
	suite.assertInputInStore(input, h)

	ok, err := suite.store.Has(ctx, h)
	suite.NoError(err)
	suite.True(ok)

	// Putting it again is a no-op.
	suite.NoError(suite.store.Put(ctx, c))
	suite.assertInputInStore(input, h)
	suite.Equal(uint64(1), suite.store.Stats().ChunkWrites)
}

func (suite *ChunkStoreTestSuite) TestChunkStoreGetNonExisting() {
	ctx := context.Background()
	h := hash.Parse("11111111111111111111111111111111")
	c, err := suite.store.Get(ctx, h)
	suite.NoError(err)
	suite.True(c.IsEmpty())

	ok, err := suite.store.Has(ctx, h)
	suite.NoError(err)
	suite.False(ok)
}

func (suite *ChunkStoreTestSuite) TestChunkStoreRef() {
	ctx := context.Background()
	oldRef, err := suite.store.Ref(ctx, "refs/heads/main")
	suite.NoError(err)
	suite.True(oldRef.IsEmpty())

	bogusRef := hash.Parse("8habda5skfek1265pc5d5l1orptn5dr0")
	newRef := hash.Parse("8la6qjbh81v85r6q67lqbfrkmpds14lg")

	// Try to update ref with bogus old value
	ok, err := chunks.UpdateRef(ctx, suite.store, "refs/heads/main", bogusRef, newRef)
	suite.NoError(err)
	suite.False(ok)

	// Now do a valid ref update
	ok, err = chunks.UpdateRef(ctx, suite.store, "refs/heads/main", oldRef, newRef)
	suite.NoError(err)
	suite.True(ok)

	current, err := suite.store.Ref(ctx, "refs/heads/main")
	suite.NoError(err)
	suite.Equal(newRef, current)

	// Creating an existing ref fails.
	ok, err = chunks.UpdateRef(ctx, suite.store, "refs/heads/main", hash.Hash{}, bogusRef)
	suite.NoError(err)
	suite.False(ok)
}

func (suite *ChunkStoreTestSuite) TestChunkStoreRefDelete() {
	ctx := context.Background()
	h := hash.Of([]byte("tip"))
	ok, err := chunks.UpdateRef(ctx, suite.store, "refs/tmp", hash.Hash{}, h)
	suite.NoError(err)
	suite.True(ok)

	ok, err = chunks.UpdateRef(ctx, suite.store, "refs/tmp", h, hash.Hash{})
	suite.NoError(err)
	suite.True(ok)

	current, err := suite.store.Ref(ctx, "refs/tmp")
	suite.NoError(err)
	suite.True(current.IsEmpty())

	refs, err := suite.store.Refs(ctx, "refs/")
	suite.NoError(err)
	suite.Empty(refs)
}

func (suite *ChunkStoreTestSuite) TestChunkStoreCommitRefsIsAtomic() {
	ctx := context.Background()
	a, b := hash.Of([]byte("a")), hash.Of([]byte("b"))
	conflicts, err := suite.store.CommitRefs(ctx, []chunks.RefUpdate{
		{Name: "refs/a", New: a},
		{Name: "refs/b", New: b},
	})
	suite.NoError(err)
	suite.Empty(conflicts)

	// One stale expectation fails the whole batch.
	conflicts, err = suite.store.CommitRefs(ctx, []chunks.RefUpdate{
		{Name: "refs/a", Old: a, New: b},
		{Name: "refs/b", Old: a, New: a},
		{Name: "refs/c", New: a},
	})
	suite.NoError(err)
	suite.Equal([]string{"refs/b"}, conflicts)

	refs, err := suite.store.Refs(ctx, "refs/")
	suite.NoError(err)
	suite.Equal(map[string]hash.Hash{"refs/a": a, "refs/b": b}, refs)

	st := suite.store.Stats()
	suite.Equal(uint64(1), st.RefCommits)
	suite.Equal(uint64(1), st.RefConflicts)
}

func (suite *ChunkStoreTestSuite) TestChunkStoreRefsPrefix() {
	ctx := context.Background()
	h := hash.Of([]byte("x"))
	for _, name := range []string{"refs/accounts/01/1", "refs/accounts/02/2", "refs/meta/external-ids"} {
		ok, err := chunks.UpdateRef(ctx, suite.store, name, hash.Hash{}, h)
		suite.NoError(err)
		suite.True(ok)
	}

	refs, err := suite.store.Refs(ctx, "refs/accounts/")
	suite.NoError(err)
	suite.Len(refs, 2)
	suite.Contains(refs, "refs/accounts/01/1")
	suite.Contains(refs, "refs/accounts/02/2")

	all, err := suite.store.Refs(ctx, "")
	suite.NoError(err)
	suite.Len(all, 3)
}

func (suite *ChunkStoreTestSuite) TestChunkStoreRejectsInvalidUpdates() {
	ctx := context.Background()
	h := hash.Of([]byte("x"))
	_, err := suite.store.CommitRefs(ctx, []chunks.RefUpdate{
		{Name: "refs/a", New: h},
		{Name: "refs/a", New: h},
	})
	suite.ErrorIs(err, chunks.ErrInvalidRefUpdate)

	_, err = suite.store.CommitRefs(ctx, []chunks.RefUpdate{{New: h}})
	suite.ErrorIs(err, chunks.ErrInvalidRefUpdate)

	current, err := suite.store.Ref(ctx, "refs/a")
	suite.NoError(err)
	suite.True(current.IsEmpty())
}

func (suite *ChunkStoreTestSuite) TestChunkStoreConcurrentCreate() {
	ctx := context.Background()
	const writers = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := hash.Of([]byte(fmt.Sprintf("writer-%d", i)))
			ok, err := chunks.UpdateRef(ctx, suite.store, "refs/contended", hash.Hash{}, h)
			suite.NoError(err)
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	suite.Equal(int32(1), wins.Load())
}
