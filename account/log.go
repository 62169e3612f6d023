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

package account

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/datas"
	"github.com/dolthub/accountdb/hash"
)

var configFiles = []string{AccountConfig, PreferencesConfig, TokensConfig, AuthorizedKeys}

// Log reads and writes account records, one ref per account.
type Log struct {
	db  *datas.Database
	lgr *logrus.Entry
}

func NewLog(db *datas.Database, lgr *logrus.Entry) *Log {
	if lgr == nil {
		lgr = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Log{db: db, lgr: lgr.WithField("component", "account-log")}
}

func (l *Log) Database() *datas.Database {
	return l.db
}

// Read returns the record at the tip of the account's ref. The second
// return is false if the account does not exist.
func (l *Log) Read(ctx context.Context, id ID) (Record, bool, error) {
	r, _, ok, err := l.ReadHead(ctx, id)
	return r, ok, err
}

// ReadHead is Read that also returns the tip commit.
func (l *Log) ReadHead(ctx context.Context, id ID) (Record, datas.Commit, bool, error) {
	c, ok, err := l.db.Head(ctx, id.RefName())
	if err != nil || !ok {
		return Record{}, datas.Commit{}, false, err
	}
	r, err := l.decode(ctx, id, c)
	if err != nil {
		return Record{}, datas.Commit{}, false, err
	}
	return r, c, true, nil
}

// ReadAt returns the record as of |metaID|, which need not be the tip.
func (l *Log) ReadAt(ctx context.Context, id ID, metaID hash.Hash) (Record, datas.Commit, error) {
	c, err := l.db.ReadCommit(ctx, metaID)
	if err != nil {
		return Record{}, datas.Commit{}, err
	}
	r, err := l.decode(ctx, id, c)
	if err != nil {
		return Record{}, datas.Commit{}, err
	}
	return r, c, nil
}

func (l *Log) decode(ctx context.Context, id ID, c datas.Commit) (Record, error) {
	t, err := l.db.ReadTree(ctx, c.Tree)
	if err != nil {
		return Record{}, err
	}
	files := make(map[string][]byte, t.Len())
	for _, name := range configFiles {
		data, ok, err := l.db.ReadPath(ctx, t, name)
		if err != nil {
			return Record{}, err
		}
		if ok {
			files[name] = data
		}
	}
	r, err := DecodeFiles(id, files)
	if err != nil {
		return Record{}, err
	}
	r.Account.MetaID = c.Addr()
	return r, nil
}

// Staged is a written but unpublished account commit. Nothing is visible
// until Update is applied to the store's refs.
type Staged struct {
	ID     ID
	Record Record
	Commit datas.Commit
	Update chunks.RefUpdate
	// Changed is false when the record's tree was unchanged and no commit
	// was written.
	Changed bool
}

// Stage writes the commit that moves the account from |parent| to |next|.
// A zero parent MetaID stages the account's first commit. When the
// resulting tree is identical to the parent's, no commit is written unless
// |force| is set.
func (l *Log) Stage(ctx context.Context, parent, next Record, meta datas.CommitMeta, force bool) (Staged, error) {
	id := next.Account.ID
	base := datas.EmptyTree
	var parents []hash.Hash
	if !parent.MetaID().IsEmpty() {
		var err error
		if base, err = l.db.ReadCommitTree(ctx, parent.MetaID()); err != nil {
			return Staged{}, err
		}
		parents = []hash.Hash{parent.MetaID()}
	}

	if next.Account.Registered.IsZero() {
		next.Account.Registered = meta.Time()
	}
	files, err := EncodeFiles(next)
	if err != nil {
		return Staged{}, err
	}
	ed := l.db.NewTreeEditor(base)
	for _, name := range configFiles {
		if data, ok := files[name]; ok {
			ed.SetBlob(name, data)
		} else {
			ed.Delete(name)
		}
	}
	t, treeHash, err := ed.Write(ctx)
	if err != nil {
		return Staged{}, err
	}

	if len(parents) > 0 && t.Equals(base) && !force {
		return Staged{ID: id, Record: parent}, nil
	}

	c, err := l.db.WriteCommit(ctx, treeHash, parents, meta)
	if err != nil {
		return Staged{}, err
	}
	next.Account.MetaID = c.Addr()
	l.lgr.WithFields(logrus.Fields{"account": id, "commit": c.Addr().String()}).Trace("staged account commit")
	return Staged{
		ID:      id,
		Record:  next,
		Commit:  c,
		Update:  chunks.RefUpdate{Name: id.RefName(), Old: parent.MetaID(), New: c.Addr()},
		Changed: true,
	}, nil
}

// Write stages |next| on top of |parent| and moves the account ref. It
// returns a *datas.ConflictError if the ref no longer points at |parent|.
func (l *Log) Write(ctx context.Context, parent, next Record, meta datas.CommitMeta) (Record, error) {
	s, err := l.Stage(ctx, parent, next, meta, false)
	if err != nil || !s.Changed {
		return s.Record, err
	}
	if err := l.db.CommitRefs(ctx, []chunks.RefUpdate{s.Update}); err != nil {
		return Record{}, err
	}
	return s.Record, nil
}

// Create writes the first commit of a new account. It returns
// ErrAlreadyExists if the account's ref exists.
func (l *Log) Create(ctx context.Context, rec Record, meta datas.CommitMeta) (Record, error) {
	rec.Account.MetaID = hash.Hash{}
	s, err := l.Stage(ctx, Record{}, rec, meta, true)
	if err != nil {
		return Record{}, err
	}
	if err := l.db.CommitRefs(ctx, []chunks.RefUpdate{s.Update}); err != nil {
		if _, ok := err.(*datas.ConflictError); ok {
			return Record{}, ErrAlreadyExists.New(int32(rec.Account.ID))
		}
		return Record{}, err
	}
	return s.Record, nil
}

// DeleteUpdate returns the ref update removing the account at |metaID|.
func DeleteUpdate(id ID, metaID hash.Hash) chunks.RefUpdate {
	return chunks.RefUpdate{Name: id.RefName(), Old: metaID}
}

// Delete removes the account's ref. History stays in the store.
func (l *Log) Delete(ctx context.Context, id ID, metaID hash.Hash) error {
	return l.db.CommitRefs(ctx, []chunks.RefUpdate{DeleteUpdate(id, metaID)})
}
