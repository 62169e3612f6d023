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

package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/chunks/chunkstoretest"
	"github.com/dolthub/accountdb/hash"
)

func TestBoltDBChunkStoreSuite(t *testing.T) {
	suite.Run(t, &chunkstoretest.ChunkStoreTestSuite{
		Factory: func() chunks.ChunkStore {
			store, err := Open(filepath.Join(t.TempDir(), "store.db"), true)
			require.NoError(t, err)
			return store
		},
	})
}

func TestBoltDBChunkStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")
	store, err := Open(path, false)
	require.NoError(t, err)

	c := chunks.NewChunk([]byte("bolt"))
	require.NoError(t, store.Put(ctx, c))
	ok, err := chunks.UpdateRef(ctx, store, "refs/b", hash.Hash{}, c.Hash())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.Close())

	store, err = Open(path, false)
	require.NoError(t, err)
	defer store.Close()
	tip, err := store.Ref(ctx, "refs/b")
	require.NoError(t, err)
	assert.Equal(t, c.Hash(), tip)
	got, err := store.Get(ctx, tip)
	require.NoError(t, err)
	assert.Equal(t, "bolt", string(got.Data()))
}
