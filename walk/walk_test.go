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

package walk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/datas"
	"github.com/dolthub/accountdb/hash"
)

func commit(t *testing.T, db *datas.Database, msg string, parents ...hash.Hash) hash.Hash {
	ctx := context.Background()
	th, err := db.WriteTree(ctx, datas.EmptyTree)
	require.NoError(t, err)
	meta, err := datas.NewCommitMeta("walker", "walker@example.com", msg)
	require.NoError(t, err)
	c, err := db.WriteCommit(ctx, th, parents, *meta)
	require.NoError(t, err)
	return c.Addr()
}

func TestCommitsVisitsEachOnce(t *testing.T) {
	ctx := context.Background()
	db := datas.NewDatabase(chunks.NewMemoryStore(), 0)

	// root <- a <- merge
	//      <- b <-/
	root := commit(t, db, "root")
	a := commit(t, db, "a", root)
	b := commit(t, db, "b", root)
	merge := commit(t, db, "merge", a, b)

	var seen []string
	require.NoError(t, Commits(ctx, db, merge, func(c datas.Commit) error {
		seen = append(seen, c.Meta.Description)
		return nil
	}))
	assert.Equal(t, []string{"merge", "a", "b", "root"}, seen)

	n, err := CountCommits(ctx, db, a)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = CountCommits(ctx, db, hash.Hash{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestIsAncestor(t *testing.T) {
	ctx := context.Background()
	db := datas.NewDatabase(chunks.NewMemoryStore(), 0)
	root := commit(t, db, "root")
	a := commit(t, db, "a", root)
	b := commit(t, db, "b", root)

	ok, err := IsAncestor(ctx, db, root, a)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsAncestor(ctx, db, b, a)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountRefCommits(t *testing.T) {
	ctx := context.Background()
	db := datas.NewDatabase(chunks.NewMemoryStore(), 0)
	root := commit(t, db, "root")
	a := commit(t, db, "a", root)
	require.NoError(t, db.CASUpdateRef(ctx, "refs/x", hash.Hash{}, a))

	n, err := CountRefCommits(ctx, db, "refs/x")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = CountRefCommits(ctx, db, "refs/missing")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
