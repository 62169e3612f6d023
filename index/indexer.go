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

package index

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dolthub/accountdb/account"
	"github.com/dolthub/accountdb/accounts"
	"github.com/dolthub/accountdb/events"
	"github.com/dolthub/accountdb/extids"
	"github.com/dolthub/accountdb/hash"
)

const (
	indexAllParallelism = 8
	maxIndexPasses      = 4
)

// Indexer derives index documents from account states.
type Indexer struct {
	accounts *accounts.Accounts
	cache    *accounts.Cache
	store    Store
	count    atomic.Int64
	lgr      *logrus.Entry
}

var _ events.Listener = (*Indexer)(nil)

// NewIndexer returns an Indexer writing to |store|. If |cache| is not nil,
// indexing an account also refreshes its cache entry.
func NewIndexer(accts *accounts.Accounts, cache *accounts.Cache, store Store, lgr *logrus.Entry) *Indexer {
	if lgr == nil {
		lgr = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Indexer{accounts: accts, cache: cache, store: store, lgr: lgr.WithField("component", "indexer")}
}

// Index re-derives the document of account |id| from its live state, or
// removes it if the account no longer exists. If the account moved while
// its document was written the account is indexed again, so a slow Index
// never leaves an older document behind a newer one.
func (ix *Indexer) Index(ctx context.Context, id account.ID) error {
	db := ix.accounts.Log().Database()
	for pass := 1; ; pass++ {
		indexed, err := ix.indexOnce(ctx, id)
		if err != nil {
			return err
		}
		tip, err := db.ResolveRef(ctx, id.RefName())
		if err != nil {
			return err
		}
		if tip == indexed {
			return nil
		}
		if pass == maxIndexPasses {
			// the write that moved it reindexes on its own event
			ix.lgr.WithField("account", id).Warn("account kept moving while indexing")
			return nil
		}
		ix.lgr.WithField("account", id).Debug("account moved while indexing, reindexing")
	}
}

// indexOnce writes the document for the state it reads and returns that
// state's MetaID, or the empty hash if it removed the document.
func (ix *Indexer) indexOnce(ctx context.Context, id account.ID) (hash.Hash, error) {
	var st accounts.State
	var ok bool
	var err error
	if ix.cache != nil {
		ix.cache.Evict(id)
		st, ok, err = ix.cache.Get(ctx, id)
	} else {
		st, ok, err = ix.accounts.Get(ctx, id)
	}
	if err != nil {
		return hash.Hash{}, err
	}
	ix.count.Add(1)

	if !ok {
		ix.lgr.WithField("account", id).Debug("removing deleted account from index")
		return hash.Hash{}, ix.store.Delete(ctx, id)
	}
	notes, err := ix.accounts.ExternalIDs().LoadAt(ctx, st.IndexRev)
	if err != nil {
		return hash.Hash{}, err
	}
	return st.MetaID(), ix.store.Replace(ctx, NewDocument(st, notes))
}

// IndexAll indexes every existing account and returns how many were
// indexed.
func (ix *Indexer) IndexAll(ctx context.Context) (int, error) {
	ids, err := ix.accounts.IDs(ctx)
	if err != nil {
		return 0, err
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(indexAllParallelism)
	for _, id := range ids {
		eg.Go(func() error {
			return ix.Index(ctx, id)
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Reindexed returns how many times an account has been indexed.
func (ix *Indexer) Reindexed() int64 {
	return ix.count.Load()
}

// OnAccountChanged reindexes the changed account.
func (ix *Indexer) OnAccountChanged(ctx context.Context, ev events.AccountChanged) error {
	return ix.Index(ctx, ev.AccountID)
}

// NewDocument builds the document for |st|. |notes| must be the index
// revision |st| was read from.
func NewDocument(st accounts.State, notes *extids.Notes) Document {
	a := st.Account()
	doc := Document{
		AccountID:   a.ID,
		MetaID:      st.MetaID(),
		ExternalIDs: notes.Fingerprint(a.ID),
		FullName:    a.FullName,
		DisplayName: a.DisplayName,
		Active:      a.IsActive(),
	}

	emails := map[string]struct{}{}
	if a.PreferredEmail != "" {
		emails[a.PreferredEmail] = struct{}{}
	}
	for _, e := range st.ExternalIDs {
		if e.Email != "" {
			emails[e.Email] = struct{}{}
		}
		if e.Key.IsScheme(extids.SchemeUsername) {
			doc.Usernames = append(doc.Usernames, e.Key.ID)
		}
	}
	for e := range emails {
		doc.Emails = append(doc.Emails, e)
	}
	sort.Strings(doc.Emails)
	sort.Strings(doc.Usernames)
	return doc
}
