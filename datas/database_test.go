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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/hash"
)

type DatabaseSuite struct {
	suite.Suite
	storage *chunks.MemoryStorage
	db      *Database
}

func TestDatabase(t *testing.T) {
	suite.Run(t, &DatabaseSuite{})
}

func (suite *DatabaseSuite) SetupTest() {
	suite.storage = chunks.NewMemoryStorage()
	suite.db = NewDatabase(suite.storage.NewView(), 0)
}

func (suite *DatabaseSuite) meta(msg string) CommitMeta {
	m, err := NewCommitMeta("Jane Doe", "jane@example.com", msg)
	suite.Require().NoError(err)
	return *m
}

func (suite *DatabaseSuite) TestBlobRoundTrip() {
	ctx := context.Background()
	h, err := suite.db.WriteBlob(ctx, []byte("hello"))
	suite.NoError(err)
	data, err := suite.db.ReadBlob(ctx, h)
	suite.NoError(err)
	suite.Equal("hello", string(data))

	_, err = suite.db.ReadBlob(ctx, hash.Of([]byte("missing")))
	suite.ErrorIs(err, ErrObjectNotFound)
}

func (suite *DatabaseSuite) TestReadWrongKind() {
	ctx := context.Background()
	h, err := suite.db.WriteBlob(ctx, []byte("blob"))
	suite.NoError(err)
	_, err = suite.db.ReadTree(ctx, h)
	suite.ErrorIs(err, ErrWrongKind)
	_, err = suite.db.ReadCommit(ctx, h)
	suite.ErrorIs(err, ErrWrongKind)
}

func (suite *DatabaseSuite) TestCommitRoundTrip() {
	ctx := context.Background()
	blob, err := suite.db.WriteBlob(ctx, []byte("v1"))
	suite.NoError(err)
	tree := NewTree(TreeEntry{Name: "file", Kind: BlobKind, Hash: blob})
	th, err := suite.db.WriteTree(ctx, tree)
	suite.NoError(err)

	meta := suite.meta("first").WithTrailer("Index-Rev", "abc")
	c, err := suite.db.WriteCommit(ctx, th, nil, meta)
	suite.NoError(err)
	suite.False(c.IsZero())
	suite.True(c.Parent().IsEmpty())

	// Read it back through a fresh Database so nothing is cached.
	fresh := NewDatabase(suite.storage.NewView(), 0)
	got, err := fresh.ReadCommit(ctx, c.Addr())
	suite.NoError(err)
	suite.Equal(c.Addr(), got.Addr())
	suite.Equal(th, got.Tree)
	suite.Equal("first", got.Meta.Description)
	suite.Equal("abc", got.Meta.Trailers["Index-Rev"])
	suite.Equal("Jane Doe", got.Meta.CommitterName)

	gotTree, err := fresh.ReadCommitTree(ctx, c.Addr())
	suite.NoError(err)
	suite.True(tree.Equals(gotTree))
}

func (suite *DatabaseSuite) TestCASUpdateRef() {
	ctx := context.Background()
	th, err := suite.db.WriteTree(ctx, EmptyTree)
	suite.NoError(err)
	c1, err := suite.db.WriteCommit(ctx, th, nil, suite.meta("one"))
	suite.NoError(err)
	c2, err := suite.db.WriteCommit(ctx, th, []hash.Hash{c1.Addr()}, suite.meta("two"))
	suite.NoError(err)

	suite.NoError(suite.db.CASUpdateRef(ctx, "refs/heads/main", hash.Hash{}, c1.Addr()))

	err = suite.db.CASUpdateRef(ctx, "refs/heads/main", hash.Hash{}, c2.Addr())
	suite.ErrorIs(err, ErrOptimisticLockFailed)
	var ce *ConflictError
	suite.Require().ErrorAs(err, &ce)
	suite.True(ce.Conflicts("refs/heads/main"))

	suite.NoError(suite.db.CASUpdateRef(ctx, "refs/heads/main", c1.Addr(), c2.Addr()))
	head, ok, err := suite.db.Head(ctx, "refs/heads/main")
	suite.NoError(err)
	suite.True(ok)
	suite.Equal(c2.Addr(), head.Addr())
	suite.Equal(c1.Addr(), head.Parent())

	_, ok, err = suite.db.Head(ctx, "refs/heads/missing")
	suite.NoError(err)
	suite.False(ok)
}

func (suite *DatabaseSuite) TestTreeEditorNested() {
	ctx := context.Background()
	ed := suite.db.NewTreeEditor(EmptyTree)
	ed.SetBlob("ab/cdef", []byte("one")).SetBlob("ab/cxyz", []byte("two")).SetBlob("top", []byte("three"))
	t1, h1, err := ed.Write(ctx)
	suite.NoError(err)
	suite.Equal(2, t1.Len())

	data, ok, err := suite.db.ReadPath(ctx, t1, "ab/cdef")
	suite.NoError(err)
	suite.True(ok)
	suite.Equal("one", string(data))

	// Editing one sub-tree leaves the sibling entry untouched.
	ed = suite.db.NewTreeEditor(t1)
	ed.Delete("ab/cdef").SetBlob("zz/q", []byte("four"))
	t2, h2, err := ed.Write(ctx)
	suite.NoError(err)
	suite.NotEqual(h1, h2)
	top1, _ := t1.Get("top")
	top2, _ := t2.Get("top")
	suite.Equal(top1, top2)

	_, ok, err = suite.db.ReadPath(ctx, t2, "ab/cdef")
	suite.NoError(err)
	suite.False(ok)

	var paths []string
	suite.NoError(suite.db.WalkBlobs(ctx, t2, func(path string, h hash.Hash) error {
		paths = append(paths, path)
		return nil
	}))
	suite.Equal([]string{"ab/cxyz", "top", "zz/q"}, paths)

	// Removing the last blob in a sub-tree removes the sub-tree.
	ed = suite.db.NewTreeEditor(t2)
	ed.Delete("ab/cxyz")
	t3, _, err := ed.Write(ctx)
	suite.NoError(err)
	_, ok = t3.Get("ab")
	suite.False(ok)
}

func (suite *DatabaseSuite) TestUnchangedTreeHasSameHash() {
	ctx := context.Background()
	ed := suite.db.NewTreeEditor(EmptyTree)
	ed.SetBlob("a", []byte("x"))
	t1, h1, err := ed.Write(ctx)
	suite.NoError(err)

	ed = suite.db.NewTreeEditor(t1)
	ed.SetBlob("a", []byte("x"))
	_, h2, err := ed.Write(ctx)
	suite.NoError(err)
	suite.Equal(h1, h2)
}

func TestNewCommitMetaValidation(t *testing.T) {
	_, err := NewCommitMeta("", "a@b.c", "msg")
	assert.ErrorIs(t, err, ErrNameNotConfigured)
	_, err = NewCommitMeta("n", "", "msg")
	assert.ErrorIs(t, err, ErrEmailNotConfigured)
	_, err = NewCommitMeta("n", "a@b.c", "  ")
	assert.ErrorIs(t, err, ErrEmptyCommitMessage)

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m, err := NewCommitMetaWithAuthorCommitter("Author", "a@b.c", "msg", ts, "Server", "srv@b.c")
	require.NoError(t, err)
	assert.Equal(t, "Server", m.CommitterName)
	assert.Equal(t, ts.UnixMilli(), m.Time().UnixMilli())
	assert.Contains(t, m.WithTrailer("K", "V").String(), "\n\nK: V")
	assert.Nil(t, m.Trailers)
}
