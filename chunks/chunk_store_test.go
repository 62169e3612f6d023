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

package chunks_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/chunks/chunkstoretest"
	"github.com/dolthub/accountdb/hash"
)

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, &chunkstoretest.ChunkStoreTestSuite{
		Factory: func() chunks.ChunkStore {
			return chunks.NewMemoryStore()
		},
	})
}

func TestLevelDBStoreSuite(t *testing.T) {
	suite.Run(t, &chunkstoretest.ChunkStoreTestSuite{
		Factory: func() chunks.ChunkStore {
			store, err := chunks.NewLevelDBStore(t.TempDir(), false)
			require.NoError(t, err)
			return store
		},
	})
}

func TestMemoryViewsShareStorage(t *testing.T) {
	ctx := context.Background()
	storage := chunks.NewMemoryStorage()
	v1, v2 := storage.NewView(), storage.NewView()

	c := chunks.NewChunk([]byte("shared"))
	require.NoError(t, v1.Put(ctx, c))
	got, err := v2.Get(ctx, c.Hash())
	require.NoError(t, err)
	assert.Equal(t, c.Data(), got.Data())

	ok, err := chunks.UpdateRef(ctx, v1, "refs/x", hash.Hash{}, c.Hash())
	require.NoError(t, err)
	require.True(t, ok)
	tip, err := v2.Ref(ctx, "refs/x")
	require.NoError(t, err)
	assert.Equal(t, c.Hash(), tip)

	assert.Equal(t, uint64(1), v1.Stats().ChunkWrites)
	assert.Equal(t, uint64(0), v2.Stats().ChunkWrites)
	assert.Equal(t, uint64(1), v2.Stats().ChunkHits)
	assert.Equal(t, 1, storage.Len())
}

func TestLevelDBStorePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := chunks.NewLevelDBStore(dir, true)
	require.NoError(t, err)

	c := chunks.NewChunk([]byte("persisted"))
	require.NoError(t, store.Put(ctx, c))
	ok, err := chunks.UpdateRef(ctx, store, "refs/p", hash.Hash{}, c.Hash())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.Close())

	store, err = chunks.NewLevelDBStore(dir, true)
	require.NoError(t, err)
	defer store.Close()
	tip, err := store.Ref(ctx, "refs/p")
	require.NoError(t, err)
	assert.Equal(t, c.Hash(), tip)
	got, err := store.Get(ctx, tip)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got.Data()))
}

func TestDecodeChunkDetectsCorruption(t *testing.T) {
	c := chunks.NewChunk([]byte("payload"))
	persisted := chunks.EncodeChunk(c)

	got, err := chunks.DecodeChunk(c.Hash(), persisted)
	require.NoError(t, err)
	assert.Equal(t, c.Data(), got.Data())

	_, err = chunks.DecodeChunk(hash.Of([]byte("other")), persisted)
	assert.ErrorIs(t, err, chunks.ErrCorruptChunk)

	_, err = chunks.DecodeChunk(c.Hash(), []byte{0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, chunks.ErrCorruptChunk)
}

func TestStatsString(t *testing.T) {
	s := chunks.Stats{ChunkReads: 1200, ChunkHits: 1000, ChunkWrites: 3, BytesWritten: 2048, RefCommits: 2}
	assert.Equal(t, "chunks: 1,200 reads (1,000 hits), 3 writes (2.0 kB); refs: 0 reads, 2 commits, 0 conflicts", s.String())
}
