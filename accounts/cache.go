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

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/dolthub/accountdb/account"
	"github.com/dolthub/accountdb/events"
	"github.com/dolthub/accountdb/extids"
	"github.com/dolthub/accountdb/hash"
)

const (
	defaultCacheSize        = 1024
	defaultHistoryCacheSize = 256
)

// Cache is a read-through cache of account states. An entry is only served
// while the account's ref still points at the entry's MetaID and the index
// still holds the entry's external IDs; both refs are resolved on every Get.
type Cache struct {
	accounts *Accounts
	entries  *lru.Cache[account.ID, State]
	history  *lru.Cache[hash.Hash, State]
	group    singleflight.Group
	lgr      *logrus.Entry
}

var _ events.Listener = (*Cache)(nil)

// NewCache returns a Cache holding up to |size| live states and
// |historySize| historical ones. Non-positive sizes use defaults.
func NewCache(accounts *Accounts, size, historySize int, lgr *logrus.Entry) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if historySize <= 0 {
		historySize = defaultHistoryCacheSize
	}
	entries, err := lru.New[account.ID, State](size)
	if err != nil {
		panic(err)
	}
	history, err := lru.New[hash.Hash, State](historySize)
	if err != nil {
		panic(err)
	}
	if lgr == nil {
		lgr = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Cache{
		accounts: accounts,
		entries:  entries,
		history:  history,
		lgr:      lgr.WithField("component", "account-cache"),
	}
}

// Get returns the live state of account |id|. The second return is false if
// the account does not exist.
func (c *Cache) Get(ctx context.Context, id account.ID) (State, bool, error) {
	tip, err := c.accounts.log.Database().ResolveRef(ctx, id.RefName())
	if err != nil {
		return State{}, false, err
	}
	if tip.IsEmpty() {
		c.entries.Remove(id)
		return State{}, false, nil
	}
	if s, ok := c.entries.Get(id); ok {
		if s.MetaID() == tip {
			s, ok, err = c.refreshIndexRev(ctx, s)
			if err != nil {
				return State{}, false, err
			}
			if ok {
				return s, true, nil
			}
		}
		c.lgr.WithField("account", id).Trace("evicting outdated entry")
		c.entries.Remove(id)
	}

	type loaded struct {
		s  State
		ok bool
	}
	// Callers only share a load if they resolved the same tip, so a load that
	// started before a write is never handed to a caller that saw the write.
	v, err, _ := c.group.Do(id.String()+"@"+tip.String(), func() (interface{}, error) {
		s, ok, err := c.accounts.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			c.entries.Add(id, s)
		}
		return loaded{s, ok}, nil
	})
	if err != nil {
		return State{}, false, err
	}
	l := v.(loaded)
	if l.ok && l.s.MetaID() != tip {
		// the ref moved again while loading; read it without coalescing
		return c.accounts.Get(ctx, id)
	}
	return l.s, l.ok, nil
}

// refreshIndexRev checks |s| against the live index revision. If the index
// moved without touching the account's external IDs the entry is kept under
// the new revision; otherwise the second return is false.
func (c *Cache) refreshIndexRev(ctx context.Context, s State) (State, bool, error) {
	rev, err := c.accounts.ext.Rev(ctx)
	if err != nil {
		return State{}, false, err
	}
	if rev == s.IndexRev {
		return s, true, nil
	}
	notes, err := c.accounts.ext.LoadAt(ctx, rev)
	if err != nil {
		return State{}, false, err
	}
	if !sameExternalIDs(notes.ByAccount(s.ID()), s.ExternalIDs) {
		return State{}, false, nil
	}
	s.IndexRev = rev
	c.entries.Add(s.ID(), s)
	return s, true, nil
}

func sameExternalIDs(a, b []extids.ExternalID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// GetAtMetaID returns the state of account |id| as of commit |metaID|, which
// must still be reachable from the account's ref.
func (c *Cache) GetAtMetaID(ctx context.Context, id account.ID, metaID hash.Hash) (State, error) {
	if s, ok := c.history.Get(metaID); ok && s.ID() == id {
		if err := c.accounts.CheckHistory(ctx, id, metaID); err != nil {
			return State{}, err
		}
		return s, nil
	}
	s, err := c.accounts.GetAtMetaID(ctx, id, metaID)
	if err != nil {
		return State{}, err
	}
	c.history.Add(metaID, s)
	return s, nil
}

// Evict drops the live entry for |id|.
func (c *Cache) Evict(id account.ID) {
	c.entries.Remove(id)
}

// Peek returns the live entry for |id| without validating it.
func (c *Cache) Peek(id account.ID) (State, bool) {
	return c.entries.Peek(id)
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

// OnAccountChanged evicts the changed account.
func (c *Cache) OnAccountChanged(_ context.Context, ev events.AccountChanged) error {
	c.Evict(ev.AccountID)
	return nil
}
