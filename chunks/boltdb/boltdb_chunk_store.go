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

package boltdb

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/hash"
)

var (
	chunkBucket = []byte("chunks")
	refBucket   = []byte("refs")
)

// BoltDBChunkStore is a ChunkStore kept in a single bbolt file. bbolt
// serializes read-write transactions, so each CommitRefs runs its
// compare-and-swap inside one Update.
type BoltDBChunkStore struct {
	db    *bolt.DB
	stats *chunks.StatsCounter
}

var _ chunks.ChunkStore = (*BoltDBChunkStore)(nil)

// Open opens (creating if needed) the bbolt file at |path|.
func Open(path string, noSync bool) (*BoltDBChunkStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second, NoSync: noSync})
	if err != nil {
		return nil, errors.Wrapf(err, "opening bolt db %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{chunkBucket, refBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating buckets")
	}
	return &BoltDBChunkStore{db: db, stats: &chunks.StatsCounter{}}, nil
}

// Get the Chunk for the value of the hash in the store. If the hash is
// absent from the store EmptyChunk is returned.
func (b *BoltDBChunkStore) Get(ctx context.Context, h hash.Hash) (chunks.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return chunks.EmptyChunk, err
	}
	var persisted []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(chunkBucket).Get(h[:]); v != nil {
			// v is only valid for the life of the transaction
			persisted = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return chunks.EmptyChunk, errors.Wrapf(err, "bolt: get chunk %s", h)
	}
	b.stats.ChunkRead(persisted != nil)
	if persisted == nil {
		return chunks.EmptyChunk, nil
	}
	return chunks.DecodeChunk(h, persisted)
}

// Has returns true iff the value at the address |h| is contained in the store
func (b *BoltDBChunkStore) Has(ctx context.Context, h hash.Hash) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(chunkBucket).Get(h[:]) != nil
		return nil
	})
	return found, errors.Wrapf(err, "bolt: has chunk %s", h)
}

// Put writes c if it is not already present. Concurrent puts are coalesced
// into shared transactions by bolt's Batch.
func (b *BoltDBChunkStore) Put(ctx context.Context, c chunks.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h := c.Hash()
	persisted := chunks.EncodeChunk(c)
	written := false
	err := b.db.Batch(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(chunkBucket)
		if bkt.Get(h[:]) != nil {
			return nil
		}
		written = true
		return bkt.Put(h[:], persisted)
	})
	if err != nil {
		return errors.Wrapf(err, "bolt: put chunk %s", h)
	}
	if written {
		b.stats.ChunkWritten(len(persisted))
	}
	return nil
}

func (b *BoltDBChunkStore) Ref(ctx context.Context, name string) (hash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return hash.Hash{}, err
	}
	b.stats.RefRead()
	var h hash.Hash
	err := b.db.View(func(tx *bolt.Tx) error {
		var err error
		h, err = readRef(tx, name)
		return err
	})
	return h, err
}

func readRef(tx *bolt.Tx, name string) (hash.Hash, error) {
	v := tx.Bucket(refBucket).Get([]byte(name))
	if v == nil {
		return hash.Hash{}, nil
	}
	return chunks.DecodeRef(v)
}

func (b *BoltDBChunkStore) Refs(ctx context.Context, prefix string) (map[string]hash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.stats.RefRead()
	out := make(map[string]hash.Hash)
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(refBucket).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			h, err := chunks.DecodeRef(v)
			if err != nil {
				return err
			}
			out[string(k)] = h
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "bolt: iterating refs")
	}
	return out, nil
}

func (b *BoltDBChunkStore) CommitRefs(ctx context.Context, updates []chunks.RefUpdate) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := chunks.ValidateRefUpdates(updates); err != nil {
		return nil, err
	}
	var conflicts []string
	err := b.db.Update(func(tx *bolt.Tx) error {
		var err error
		conflicts, err = chunks.CheckRefUpdates(updates, func(name string) (hash.Hash, error) {
			return readRef(tx, name)
		})
		if err != nil || len(conflicts) > 0 {
			return err
		}
		bkt := tx.Bucket(refBucket)
		for _, u := range updates {
			if u.New.IsEmpty() {
				err = bkt.Delete([]byte(u.Name))
			} else {
				err = bkt.Put([]byte(u.Name), chunks.EncodeRef(u.New))
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "bolt: committing refs")
	}
	b.stats.RefCommit(len(conflicts) > 0)
	return conflicts, nil
}

func (b *BoltDBChunkStore) Stats() chunks.Stats {
	return b.stats.Snapshot()
}

func (b *BoltDBChunkStore) Close() error {
	return b.db.Close()
}
