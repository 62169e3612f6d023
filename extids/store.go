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

package extids

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/dolthub/accountdb/account"
	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/datas"
	"github.com/dolthub/accountdb/hash"
	"github.com/dolthub/accountdb/ref"
)

const defaultRevCacheSize = 16

// Store reads and writes the index ref. Parsed revisions are cached by
// commit address, so a revision is parsed at most once while it stays in
// the cache.
type Store struct {
	db    *datas.Database
	cache *lru.Cache[hash.Hash, *Notes]
	group singleflight.Group
	lgr   *logrus.Entry
}

func NewStore(db *datas.Database, cacheSize int, lgr *logrus.Entry) *Store {
	if cacheSize <= 0 {
		cacheSize = defaultRevCacheSize
	}
	cache, err := lru.New[hash.Hash, *Notes](cacheSize)
	if err != nil {
		panic(err)
	}
	if lgr == nil {
		lgr = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{db: db, cache: cache, lgr: lgr.WithField("component", "external-ids")}
}

// Rev returns the live index revision.
func (s *Store) Rev(ctx context.Context) (hash.Hash, error) {
	return s.db.ResolveRef(ctx, ref.ExternalIDs)
}

// Load returns the notes at the live index revision.
func (s *Store) Load(ctx context.Context) (*Notes, error) {
	rev, err := s.Rev(ctx)
	if err != nil {
		return nil, err
	}
	return s.LoadAt(ctx, rev)
}

// LoadAt returns the notes at index revision |rev|. An empty |rev| is the
// empty index.
func (s *Store) LoadAt(ctx context.Context, rev hash.Hash) (*Notes, error) {
	if rev.IsEmpty() {
		return emptyNotes(), nil
	}
	if n, ok := s.cache.Get(rev); ok {
		return n, nil
	}
	v, err, _ := s.group.Do(rev.String(), func() (interface{}, error) {
		n, err := s.load(ctx, rev)
		if err != nil {
			return nil, err
		}
		s.cache.Add(rev, n)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Notes), nil
}

// TODO: derive a revision from a cached ancestor by diffing trees instead
// of parsing every note.
func (s *Store) load(ctx context.Context, rev hash.Hash) (*Notes, error) {
	t, err := s.db.ReadCommitTree(ctx, rev)
	if err != nil {
		return nil, err
	}
	n := emptyNotes()
	n.rev = rev
	n.tree = t
	err = s.db.WalkBlobs(ctx, t, func(path string, h hash.Hash) error {
		data, err := s.db.ReadBlob(ctx, h)
		if err != nil {
			return err
		}
		e, err := decodeNote(path, data)
		if err != nil {
			s.lgr.WithError(err).WithField("rev", rev.String()).Warn("ignoring invalid external ID note")
			return nil
		}
		n.add(e, h)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Prime caches |n| so that readers of its revision need not parse it.
func (s *Store) Prime(n *Notes) {
	if !n.rev.IsEmpty() {
		s.cache.Add(n.rev, n)
	}
}

// Staged is a written but unpublished index commit.
type Staged struct {
	// Notes is the index as it reads once Update is applied.
	Notes   *Notes
	Commit  datas.Commit
	Update  chunks.RefUpdate
	Changed bool
}

// Stage writes the index commit applying |p| to its base revision. An
// empty patch writes nothing.
func (s *Store) Stage(ctx context.Context, p *Patch, meta datas.CommitMeta) (Staged, error) {
	base := p.Base()
	if p.IsEmpty() {
		return Staged{Notes: base}, nil
	}

	removes, adds := p.Removes(), p.Adds()
	ed := s.db.NewTreeEditor(base.tree)
	for _, e := range removes {
		ed.Delete(e.Key.NotePath())
	}
	for _, e := range adds {
		data, err := encodeNote(e)
		if err != nil {
			return Staged{}, err
		}
		ed.SetBlob(e.Key.NotePath(), data)
	}
	t, treeHash, err := ed.Write(ctx)
	if err != nil {
		return Staged{}, err
	}

	var parents []hash.Hash
	if !base.rev.IsEmpty() {
		parents = []hash.Hash{base.rev}
	}
	c, err := s.db.WriteCommit(ctx, treeHash, parents, meta)
	if err != nil {
		return Staged{}, err
	}

	next := &Notes{
		rev:       c.Addr(),
		tree:      t,
		byKey:     make(map[Key]ExternalID, len(base.byKey)+len(adds)),
		noteHash:  make(map[Key]hash.Hash, len(base.byKey)+len(adds)),
		byAccount: make(map[account.ID][]Key, len(base.byAccount)),
	}
	for k, e := range base.byKey {
		if _, ok := p.removes[k]; ok {
			continue
		}
		if _, ok := p.adds[k]; ok {
			continue
		}
		next.add(e, base.noteHash[k])
	}
	for _, e := range p.adds {
		h, err := s.notePathHash(ctx, t, e.Key.NotePath())
		if err != nil {
			return Staged{}, err
		}
		next.add(e, h)
	}

	return Staged{
		Notes:   next,
		Commit:  c,
		Update:  chunks.RefUpdate{Name: ref.ExternalIDs, Old: base.rev, New: c.Addr()},
		Changed: true,
	}, nil
}

func (s *Store) notePathHash(ctx context.Context, t datas.Tree, path string) (hash.Hash, error) {
	dir, name, _ := strings.Cut(path, "/")
	e, ok := t.Get(dir)
	if ok {
		sub, err := s.db.ReadTree(ctx, e.Hash)
		if err != nil {
			return hash.Hash{}, err
		}
		if e, ok = sub.Get(name); ok {
			return e.Hash, nil
		}
	}
	return hash.Hash{}, datas.ErrObjectNotFound
}

// Commit applies |p| on its own and moves the index ref. It returns a
// *datas.ConflictError if the index moved since the patch's base revision.
func (s *Store) Commit(ctx context.Context, p *Patch, meta datas.CommitMeta) (*Notes, error) {
	staged, err := s.Stage(ctx, p, meta)
	if err != nil || !staged.Changed {
		return staged.Notes, err
	}
	if err := s.db.CommitRefs(ctx, []chunks.RefUpdate{staged.Update}); err != nil {
		return nil, err
	}
	s.Prime(staged.Notes)
	s.lgr.WithField("rev", staged.Commit.Addr().String()).Debug("committed external IDs")
	return staged.Notes, nil
}
