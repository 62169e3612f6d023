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

package accounts

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/accountdb/account"
	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/datas"
	"github.com/dolthub/accountdb/events"
	"github.com/dolthub/accountdb/extids"
	"github.com/dolthub/accountdb/hash"
	"github.com/dolthub/accountdb/util/retry"
)

// gatedStore parks the first Get after arm until release is closed.
type gatedStore struct {
	chunks.ChunkStore
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		ChunkStore: chunks.NewMemoryStore(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (g *gatedStore) arm() {
	g.armed.Store(true)
}

func (g *gatedStore) Get(ctx context.Context, h hash.Hash) (chunks.Chunk, error) {
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.ChunkStore.Get(ctx, h)
}

type cacheEnv struct {
	db       *datas.Database
	accounts *Accounts
	notifier *events.Notifier
	updater  *Updater
	cache    *Cache
}

func newCacheEnv(t *testing.T) cacheEnv {
	return newCacheEnvOn(t, chunks.NewMemoryStore())
}

func newCacheEnvOn(t *testing.T, cs chunks.ChunkStore) cacheEnv {
	db := datas.NewDatabase(cs, 0)
	accts := NewAccounts(account.NewLog(db, nil), extids.NewStore(db, 0, nil))
	notifier := events.NewNotifier(nil)
	helper := retry.NewHelper(retry.Options{Block: retry.NoSleep})
	return cacheEnv{
		db:       db,
		accounts: accts,
		notifier: notifier,
		updater:  NewUpdater(accts, notifier, helper, Options{Committer: testCommitter}),
		cache:    NewCache(accts, 0, 0, nil),
	}
}

func TestCacheValidatesAgainstTip(t *testing.T) {
	ctx := context.Background()
	env := newCacheEnv(t)

	first, err := env.updater.Insert(ctx, "Create Account", 1, func(d *Delta) { d.SetStatus("one") })
	require.NoError(t, err)

	st, ok, err := env.cache.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.MetaID(), st.MetaID())
	assert.Equal(t, 1, env.cache.Len())

	// the cache is not registered for events, the tip check alone must
	// catch the write
	second, _, err := env.updater.Update(ctx, "Set Status", 1, func(d *Delta) { d.SetStatus("two") })
	require.NoError(t, err)
	st, _, err = env.cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "two", st.Account().Status)
	assert.Equal(t, second.MetaID(), st.MetaID())

	// so must an out of band ref update
	require.NoError(t, env.db.CASUpdateRef(ctx, account.ID(1).RefName(), second.MetaID(), first.MetaID()))
	st, _, err = env.cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "one", st.Account().Status)
	assert.Equal(t, first.MetaID(), st.MetaID())

	// and a deletion
	require.NoError(t, env.accounts.Log().Delete(ctx, 1, first.MetaID()))
	_, ok, err = env.cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, env.cache.Len())
}

func TestCacheEvictsOnEvent(t *testing.T) {
	ctx := context.Background()
	env := newCacheEnv(t)
	env.notifier.Register("cache", env.cache)

	_, err := env.updater.Insert(ctx, "Create Account", 1, nil)
	require.NoError(t, err)
	_, _, err = env.cache.Get(ctx, 1)
	require.NoError(t, err)
	_, ok := env.cache.Peek(1)
	require.True(t, ok)

	_, _, err = env.updater.Update(ctx, "Set Status", 1, func(d *Delta) { d.SetStatus("away") })
	require.NoError(t, err)
	_, ok = env.cache.Peek(1)
	assert.False(t, ok)
}

func TestCacheMissing(t *testing.T) {
	env := newCacheEnv(t)
	_, ok, err := env.cache.Get(context.Background(), 77)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, env.cache.Len())
}

func TestCacheGetAtMetaID(t *testing.T) {
	ctx := context.Background()
	env := newCacheEnv(t)
	first, err := env.updater.Insert(ctx, "Create Account", 1, func(d *Delta) { d.SetFullName("Before") })
	require.NoError(t, err)
	_, _, err = env.updater.Update(ctx, "Rename", 1, func(d *Delta) { d.SetFullName("After") })
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		old, err := env.cache.GetAtMetaID(ctx, 1, first.MetaID())
		require.NoError(t, err)
		assert.Equal(t, "Before", old.Account().FullName)
		assert.Equal(t, first.MetaID(), old.MetaID())
	}

	live, _, err := env.cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "After", live.Account().FullName)

	_, err = env.cache.GetAtMetaID(ctx, 2, first.MetaID())
	assert.True(t, ErrNotInHistory.Is(err), "unexpected error: %v", err)

	// a cached historical state is dropped from view once the ref no longer
	// reaches it
	require.NoError(t, env.accounts.Log().Delete(ctx, 1, live.MetaID()))
	_, err = env.cache.GetAtMetaID(ctx, 1, first.MetaID())
	assert.True(t, ErrNotInHistory.Is(err), "unexpected error: %v", err)
}

func TestCacheGetDuringWrite(t *testing.T) {
	ctx := context.Background()
	cs := newGatedStore()
	env := newCacheEnvOn(t, cs)
	_, err := env.updater.Insert(ctx, "Create Account", 1, func(d *Delta) { d.SetStatus("old") })
	require.NoError(t, err)

	type result struct {
		s   State
		ok  bool
		err error
	}
	get := func() <-chan result {
		ch := make(chan result, 1)
		go func() {
			s, ok, err := env.cache.Get(ctx, 1)
			ch <- result{s, ok, err}
		}()
		return ch
	}

	cs.arm()
	first := get()
	<-cs.entered

	written, _, err := env.updater.Update(ctx, "Set Status", 1, func(d *Delta) { d.SetStatus("new") })
	require.NoError(t, err)

	var second result
	select {
	case second = <-get():
	case <-time.After(5 * time.Second):
		close(cs.release)
		t.Fatal("Get after a write waited on a load started before it")
	}
	require.NoError(t, second.err)
	require.True(t, second.ok)
	assert.Equal(t, written.MetaID(), second.s.MetaID())
	assert.Equal(t, "new", second.s.Account().Status)

	close(cs.release)
	r := <-first
	require.NoError(t, r.err)
	assert.Equal(t, "old", r.s.Account().Status)

	third, _, err := env.cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, written.MetaID(), third.MetaID())
	assert.Equal(t, "new", third.Account().Status)
}

func TestCacheFollowsIndexRev(t *testing.T) {
	ctx := context.Background()
	env := newCacheEnv(t)
	k1 := extids.NewKey(extids.SchemeUsername, "jane")
	_, err := env.updater.Insert(ctx, "Create Account", 1, func(d *Delta) { d.AddExternalID(extids.New(k1, 0, "")) })
	require.NoError(t, err)
	_, err = env.updater.Insert(ctx, "Create Account", 2, nil)
	require.NoError(t, err)

	st, _, err := env.cache.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, st.ExternalIDs, 1)
	cached := st.IndexRev

	commit := func(id account.ID, e extids.ExternalID) {
		notes, err := env.accounts.ExternalIDs().Load(ctx)
		require.NoError(t, err)
		p := notes.NewPatch()
		require.NoError(t, p.Propose(id, []extids.ExternalID{e}, nil))
		_, err = env.accounts.ExternalIDs().Commit(ctx, p, datas.CommitMeta{Name: "test", Email: "test@localhost", Description: "Add External ID"})
		require.NoError(t, err)
	}

	// an index change for another account keeps the entry
	commit(2, extids.New(extids.NewKey(extids.SchemeUsername, "john"), 2, ""))
	st, _, err = env.cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, st.ExternalIDs, 1)
	rev, err := env.accounts.ExternalIDs().Rev(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, cached, rev)
	assert.Equal(t, rev, st.IndexRev)
	peeked, ok := env.cache.Peek(1)
	require.True(t, ok)
	assert.Equal(t, rev, peeked.IndexRev)

	// one for this account does not
	k2 := extids.NewKey(extids.SchemeMailto, "jane@example.com")
	commit(1, extids.New(k2, 1, "jane@example.com"))
	st, _, err = env.cache.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, st.ExternalIDs, 2)
	_, ok = st.ExternalID(k2)
	assert.True(t, ok)
}

func TestCacheConcurrentGet(t *testing.T) {
	ctx := context.Background()
	env := newCacheEnv(t)
	created, err := env.updater.Insert(ctx, "Create Account", 1, func(d *Delta) { d.SetFullName("Shared") })
	require.NoError(t, err)

	const readers = 16
	var wg sync.WaitGroup
	got := make([]State, readers)
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i], _, errs[i] = env.cache.Get(ctx, 1)
		}()
	}
	wg.Wait()

	for i := 0; i < readers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, created.MetaID(), got[i].MetaID())
		assert.Equal(t, "Shared", got[i].Account().FullName)
	}
}
