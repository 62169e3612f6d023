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

// Package accounts joins account records with the external ID index and
// runs optimistic read-modify-write transactions over both.
package accounts

import (
	"context"
	"sort"

	"gopkg.in/src-d/go-errors.v1"

	"github.com/dolthub/accountdb/account"
	"github.com/dolthub/accountdb/extids"
	"github.com/dolthub/accountdb/hash"
	"github.com/dolthub/accountdb/ref"
	"github.com/dolthub/accountdb/walk"
)

// IndexRevTrailer names the commit trailer recording which index revision
// an account commit was written with.
const IndexRevTrailer = "Index-Rev"

// State is an account's record together with its external IDs. States are
// values and are never updated in place.
type State struct {
	Record      account.Record
	ExternalIDs []extids.ExternalID
	// IndexRev is the index revision ExternalIDs were read from.
	IndexRev hash.Hash
}

func (s State) Account() account.Account {
	return s.Record.Account
}

func (s State) ID() account.ID {
	return s.Record.Account.ID
}

// MetaID is the account commit the state was read from.
func (s State) MetaID() hash.Hash {
	return s.Record.MetaID()
}

// ExternalID returns the account's external ID for |key|.
func (s State) ExternalID(key extids.Key) (extids.ExternalID, bool) {
	for _, e := range s.ExternalIDs {
		if e.Key == key {
			return e, true
		}
	}
	return extids.ExternalID{}, false
}

// Accounts reads account states.
type Accounts struct {
	log *account.Log
	ext *extids.Store
}

func NewAccounts(log *account.Log, ext *extids.Store) *Accounts {
	return &Accounts{log: log, ext: ext}
}

func (a *Accounts) Log() *account.Log {
	return a.log
}

func (a *Accounts) ExternalIDs() *extids.Store {
	return a.ext
}

// Get returns the live state of account |id|. The second return is false if
// the account does not exist. The account is read before the index, so the
// index revision is never older than the one the account was written with.
func (a *Accounts) Get(ctx context.Context, id account.ID) (State, bool, error) {
	rec, ok, err := a.log.Read(ctx, id)
	if err != nil || !ok {
		return State{}, false, err
	}
	notes, err := a.ext.Load(ctx)
	if err != nil {
		return State{}, false, err
	}
	return newState(rec, notes), true, nil
}

// ErrNotInHistory is returned when a commit is not reachable from an
// account's ref.
var ErrNotInHistory = errors.NewKind("commit %s is not in the history of account %d")

// GetAtMetaID returns the state of account |id| as of its commit |metaID|,
// which must be reachable from the account's current ref. External IDs come
// from the index revision the commit was written with, or from the live
// index if the commit does not record one.
func (a *Accounts) GetAtMetaID(ctx context.Context, id account.ID, metaID hash.Hash) (State, error) {
	if err := a.CheckHistory(ctx, id, metaID); err != nil {
		return State{}, err
	}
	rec, c, err := a.log.ReadAt(ctx, id, metaID)
	if err != nil {
		return State{}, err
	}
	var notes *extids.Notes
	if rev, ok := hash.MaybeParse(c.Meta.Trailers[IndexRevTrailer]); ok {
		notes, err = a.ext.LoadAt(ctx, rev)
	} else {
		notes, err = a.ext.Load(ctx)
	}
	if err != nil {
		return State{}, err
	}
	return newState(rec, notes), nil
}

// CheckHistory returns ErrNotInHistory unless |metaID| is reachable from
// the current ref of account |id|.
func (a *Accounts) CheckHistory(ctx context.Context, id account.ID, metaID hash.Hash) error {
	db := a.log.Database()
	tip, err := db.ResolveRef(ctx, id.RefName())
	if err != nil {
		return err
	}
	if tip.IsEmpty() {
		return ErrNotInHistory.New(metaID, id)
	}
	ok, err := walk.IsAncestor(ctx, db, metaID, tip)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotInHistory.New(metaID, id)
	}
	return nil
}

// IDs returns the IDs of all existing accounts in ascending order.
func (a *Accounts) IDs(ctx context.Context) ([]account.ID, error) {
	refs, err := a.log.Database().Refs(ctx, ref.AccountsPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]account.ID, 0, len(refs))
	for name := range refs {
		if id, ok := account.IDFromRef(name); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func newState(rec account.Record, notes *extids.Notes) State {
	return State{Record: rec, ExternalIDs: notes.ByAccount(rec.Account.ID), IndexRev: notes.Rev()}
}
