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

package chunks

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	lderrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/dolthub/accountdb/hash"
)

var (
	refPrefix   = []byte("/ref/")
	chunkPrefix = []byte("/chunk/")
)

func toChunkKey(h hash.Hash) []byte {
	key := make([]byte, 0, len(chunkPrefix)+hash.ByteLen)
	key = append(key, chunkPrefix...)
	return append(key, h[:]...)
}

func toRefKey(name string) []byte {
	key := make([]byte, 0, len(refPrefix)+len(name))
	key = append(key, refPrefix...)
	return append(key, name...)
}

// LevelDBStore is a ChunkStore backed by a LevelDB directory. Ref updates
// are serialized by a process-wide mutex and applied as one leveldb batch.
type LevelDBStore struct {
	db    *leveldb.DB
	mu    *sync.Mutex
	sync  bool
	stats *StatsCounter
}

var _ ChunkStore = (*LevelDBStore)(nil)

// NewLevelDBStore opens (creating if needed) a LevelDBStore in |dir|. If
// |syncWrites| is set, ref commits are fsynced.
func NewLevelDBStore(dir string, syncWrites bool) (*LevelDBStore, error) {
	if dir == "" {
		return nil, errors.New("leveldb store requires a directory")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrapf(err, "creating %s", dir)
	}
	db, err := leveldb.OpenFile(dir, &opt.Options{
		// chunks are snappy-encoded before they reach leveldb
		Compression: opt.NoCompression,
		Filter:      filter.NewBloomFilter(10), // 10 bits/key
		WriteBuffer: 1 << 24,                   // 16MiB
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %s", dir)
	}
	return &LevelDBStore{db: db, mu: &sync.Mutex{}, sync: syncWrites, stats: &StatsCounter{}}, nil
}

func (l *LevelDBStore) Get(ctx context.Context, h hash.Hash) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return EmptyChunk, err
	}
	persisted, err := l.db.Get(toChunkKey(h), nil)
	if err == lderrors.ErrNotFound {
		l.stats.ChunkRead(false)
		return EmptyChunk, nil
	} else if err != nil {
		return EmptyChunk, errors.Wrapf(err, "leveldb: get chunk %s", h)
	}
	l.stats.ChunkRead(true)
	return DecodeChunk(h, persisted)
}

func (l *LevelDBStore) Has(ctx context.Context, h hash.Hash) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := l.db.Has(toChunkKey(h), nil)
	if err != nil {
		return false, errors.Wrapf(err, "leveldb: has chunk %s", h)
	}
	return ok, nil
}

func (l *LevelDBStore) Put(ctx context.Context, c Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := toChunkKey(c.Hash())
	exists, err := l.db.Has(key, &opt.ReadOptions{DontFillCache: true}) // This isn't really a "read", so don't signal the cache to treat it as one.
	if err != nil {
		return errors.Wrapf(err, "leveldb: has chunk %s", c.Hash())
	}
	if exists {
		return nil
	}
	persisted := EncodeChunk(c)
	if err := l.db.Put(key, persisted, nil); err != nil {
		return errors.Wrapf(err, "leveldb: put chunk %s", c.Hash())
	}
	l.stats.ChunkWritten(len(persisted))
	return nil
}

func (l *LevelDBStore) ref(name string) (hash.Hash, error) {
	val, err := l.db.Get(toRefKey(name), nil)
	if err == lderrors.ErrNotFound {
		return hash.Hash{}, nil
	} else if err != nil {
		return hash.Hash{}, errors.Wrapf(err, "leveldb: get ref %s", name)
	}
	return DecodeRef(val)
}

func (l *LevelDBStore) Ref(ctx context.Context, name string) (hash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return hash.Hash{}, err
	}
	l.stats.RefRead()
	return l.ref(name)
}

func (l *LevelDBStore) Refs(ctx context.Context, prefix string) (map[string]hash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.stats.RefRead()
	iter := l.db.NewIterator(util.BytesPrefix(toRefKey(prefix)), nil)
	defer iter.Release()

	out := make(map[string]hash.Hash)
	for iter.Next() {
		h, err := DecodeRef(iter.Value())
		if err != nil {
			return nil, err
		}
		out[strings.TrimPrefix(string(iter.Key()), string(refPrefix))] = h
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "leveldb: iterating refs")
	}
	return out, nil
}

func (l *LevelDBStore) CommitRefs(ctx context.Context, updates []RefUpdate) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateRefUpdates(updates); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	conflicts, err := CheckRefUpdates(updates, l.ref)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		l.stats.RefCommit(true)
		return conflicts, nil
	}

	batch := new(leveldb.Batch)
	for _, u := range updates {
		if u.New.IsEmpty() {
			batch.Delete(toRefKey(u.Name))
		} else {
			batch.Put(toRefKey(u.Name), EncodeRef(u.New))
		}
	}
	// Sync: true write option should fsync memtable data to disk
	if err := l.db.Write(batch, &opt.WriteOptions{Sync: l.sync}); err != nil {
		return nil, errors.Wrap(err, "leveldb: writing refs")
	}
	l.stats.RefCommit(false)
	return nil, nil
}

func (l *LevelDBStore) Stats() Stats {
	return l.stats.Snapshot()
}

func (l *LevelDBStore) Close() error {
	return l.db.Close()
}
