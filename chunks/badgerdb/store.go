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

// Package badgerdb implements a ChunkStore on top of BadgerDB. Ref updates
// run inside a badger read-write transaction; badger's own optimistic
// conflict detection makes the compare-and-swap atomic across processes
// sharing the database handle.
package badgerdb

import (
	"bytes"
	"context"
	"errors"
	"os"

	"github.com/dgraph-io/badger/v4"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/hash"
)

var (
	chunkPrefix = []byte("c/")
	refPrefix   = []byte("r/")
)

// Config configures a badger-backed store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory. Intended for tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's internal logging. nil disables it.
	Logger *logrus.Entry
}

// DefaultConfig returns a durable configuration rooted at |path|.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store is a chunks.ChunkStore backed by BadgerDB.
type Store struct {
	db    *badger.DB
	stats *chunks.StatsCounter
}

var _ chunks.ChunkStore = (*Store)(nil)

// Open opens a Store with |cfg|.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("path is required for persistent database")
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, pkgerrors.Wrapf(err, "create database directory %s", cfg.Path)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(cfg.Logger)
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open badger database")
	}
	return &Store{db: db, stats: &chunks.StatsCounter{}}, nil
}

func chunkKey(h hash.Hash) []byte {
	return append(append([]byte(nil), chunkPrefix...), h[:]...)
}

func refKey(name string) []byte {
	return append(append([]byte(nil), refPrefix...), name...)
}

func (s *Store) Get(ctx context.Context, h hash.Hash) (chunks.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return chunks.EmptyChunk, err
	}
	var persisted []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(h))
		if err != nil {
			return err
		}
		persisted, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		s.stats.ChunkRead(false)
		return chunks.EmptyChunk, nil
	} else if err != nil {
		return chunks.EmptyChunk, pkgerrors.Wrapf(err, "badger: get chunk %s", h)
	}
	s.stats.ChunkRead(true)
	return chunks.DecodeChunk(h, persisted)
}

func (s *Store) Has(ctx context.Context, h hash.Hash) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(chunkKey(h))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	} else if err != nil {
		return false, pkgerrors.Wrapf(err, "badger: has chunk %s", h)
	}
	return true, nil
}

func (s *Store) Put(ctx context.Context, c chunks.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ok, err := s.Has(ctx, c.Hash()); err != nil || ok {
		return err
	}
	persisted := chunks.EncodeChunk(c)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(c.Hash()), persisted)
	})
	// Two writers racing on the same chunk write identical bytes.
	if err != nil && !errors.Is(err, badger.ErrConflict) {
		return pkgerrors.Wrapf(err, "badger: put chunk %s", c.Hash())
	}
	s.stats.ChunkWritten(len(persisted))
	return nil
}

func readRef(txn *badger.Txn, name string) (hash.Hash, error) {
	item, err := txn.Get(refKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return hash.Hash{}, nil
	} else if err != nil {
		return hash.Hash{}, err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return hash.Hash{}, err
	}
	return chunks.DecodeRef(v)
}

func (s *Store) Ref(ctx context.Context, name string) (hash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return hash.Hash{}, err
	}
	s.stats.RefRead()
	var h hash.Hash
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		h, err = readRef(txn, name)
		return err
	})
	if err != nil {
		return hash.Hash{}, pkgerrors.Wrapf(err, "badger: get ref %s", name)
	}
	return h, nil
}

func (s *Store) Refs(ctx context.Context, prefix string) (map[string]hash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.stats.RefRead()
	out := make(map[string]hash.Hash)
	p := refKey(prefix)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			h, err := chunks.DecodeRef(v)
			if err != nil {
				return err
			}
			out[string(bytes.TrimPrefix(item.KeyCopy(nil), refPrefix))] = h
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "badger: iterating refs")
	}
	return out, nil
}

// CommitRefs applies |updates| in one badger transaction. badger.ErrConflict
// means another transaction touched the same refs between our read and our
// commit; the comparison is then repeated against the new values.
func (s *Store) CommitRefs(ctx context.Context, updates []chunks.RefUpdate) ([]string, error) {
	if err := chunks.ValidateRefUpdates(updates); err != nil {
		return nil, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var conflicts []string
		err := s.db.Update(func(txn *badger.Txn) error {
			var err error
			conflicts, err = chunks.CheckRefUpdates(updates, func(name string) (hash.Hash, error) {
				return readRef(txn, name)
			})
			if err != nil || len(conflicts) > 0 {
				return err
			}
			for _, u := range updates {
				if u.New.IsEmpty() {
					err = txn.Delete(refKey(u.Name))
				} else {
					err = txn.Set(refKey(u.Name), chunks.EncodeRef(u.New))
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		} else if err != nil {
			return nil, pkgerrors.Wrap(err, "badger: committing refs")
		}
		s.stats.RefCommit(len(conflicts) > 0)
		return conflicts, nil
	}
}

func (s *Store) Stats() chunks.Stats {
	return s.stats.Snapshot()
}

func (s *Store) Close() error {
	return s.db.Close()
}
