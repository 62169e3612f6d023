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

// Package walk traverses commit history.
package walk

import (
	"context"
	"errors"

	"github.com/dolthub/accountdb/datas"
	"github.com/dolthub/accountdb/hash"
)

// ErrStopWalk can be returned by a callback to end a walk early without
// error.
var ErrStopWalk = errors.New("stop walk")

// CommitCallback is called once per commit reachable from the walk's start.
// Returning ErrStopWalk ends the walk.
type CommitCallback func(c datas.Commit) error

// Commits visits |head| and each of its ancestors exactly once, breadth
// first. An empty |head| visits nothing.
func Commits(ctx context.Context, db *datas.Database, head hash.Hash, cb CommitCallback) error {
	if head.IsEmpty() {
		return nil
	}
	visited := hash.NewHashSet(head)
	queue := []hash.Hash{head}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		h := queue[0]
		queue = queue[1:]

		c, err := db.ReadCommit(ctx, h)
		if err != nil {
			return err
		}
		if err := cb(c); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return nil
			}
			return err
		}
		for _, p := range c.Parents {
			if !visited.Has(p) {
				visited.Insert(p)
				queue = append(queue, p)
			}
		}
	}
	return nil
}

// CountCommits returns the number of commits reachable from |head|.
func CountCommits(ctx context.Context, db *datas.Database, head hash.Hash) (int, error) {
	n := 0
	err := Commits(ctx, db, head, func(datas.Commit) error {
		n++
		return nil
	})
	return n, err
}

// CountRefCommits resolves |ref| and counts the commits reachable from it. A
// missing ref has zero commits.
func CountRefCommits(ctx context.Context, db *datas.Database, ref string) (int, error) {
	head, err := db.ResolveRef(ctx, ref)
	if err != nil {
		return 0, err
	}
	return CountCommits(ctx, db, head)
}

// IsAncestor reports whether |ancestor| is reachable from |head|.
func IsAncestor(ctx context.Context, db *datas.Database, ancestor, head hash.Hash) (bool, error) {
	found := false
	err := Commits(ctx, db, head, func(c datas.Commit) error {
		if c.Addr() == ancestor {
			found = true
			return ErrStopWalk
		}
		return nil
	})
	return found, err
}
