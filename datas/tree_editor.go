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

package datas

import (
	"context"
	"sort"
	"strings"

	"github.com/dolthub/accountdb/hash"
)

// TreeEditor accumulates path-level edits against a base tree and writes the
// result. Only sub-trees touched by an edit are rewritten, so edits below
// disjoint paths produce disjoint tree diffs.
type TreeEditor struct {
	db    *Database
	base  Tree
	edits map[string]*[]byte
}

func (db *Database) NewTreeEditor(base Tree) *TreeEditor {
	return &TreeEditor{db: db, base: base, edits: make(map[string]*[]byte)}
}

// SetBlob stores |data| at the slash-separated |path|.
func (ed *TreeEditor) SetBlob(path string, data []byte) *TreeEditor {
	cp := append([]byte{}, data...)
	ed.edits[path] = &cp
	return ed
}

// Delete removes the blob at |path|. Parent trees left empty are removed.
func (ed *TreeEditor) Delete(path string) *TreeEditor {
	ed.edits[path] = nil
	return ed
}

// NumEdits returns the number of pending path edits.
func (ed *TreeEditor) NumEdits() int {
	return len(ed.edits)
}

// Write stores every modified tree and returns the new root tree.
func (ed *TreeEditor) Write(ctx context.Context) (Tree, hash.Hash, error) {
	t, err := ed.apply(ctx, ed.base, ed.edits)
	if err != nil {
		return Tree{}, hash.Hash{}, err
	}
	h, err := ed.db.WriteTree(ctx, t)
	if err != nil {
		return Tree{}, hash.Hash{}, err
	}
	return t, h, nil
}

func (ed *TreeEditor) apply(ctx context.Context, base Tree, edits map[string]*[]byte) (Tree, error) {
	leaves := make(map[string]*[]byte)
	nested := make(map[string]map[string]*[]byte)
	for path, data := range edits {
		head, rest, found := strings.Cut(path, "/")
		if !found {
			leaves[head] = data
			continue
		}
		if nested[head] == nil {
			nested[head] = make(map[string]*[]byte)
		}
		nested[head][rest] = data
	}

	entries := make(map[string]TreeEntry, base.Len())
	for _, e := range base.entries {
		entries[e.Name] = e
	}

	for name, data := range leaves {
		if data == nil {
			delete(entries, name)
			continue
		}
		h, err := ed.db.WriteBlob(ctx, *data)
		if err != nil {
			return Tree{}, err
		}
		entries[name] = TreeEntry{Name: name, Kind: BlobKind, Hash: h}
	}

	names := make([]string, 0, len(nested))
	for name := range nested {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sub := EmptyTree
		if e, ok := entries[name]; ok && e.Kind == TreeKind {
			var err error
			if sub, err = ed.db.ReadTree(ctx, e.Hash); err != nil {
				return Tree{}, err
			}
		}
		sub, err := ed.apply(ctx, sub, nested[name])
		if err != nil {
			return Tree{}, err
		}
		if sub.IsEmpty() {
			delete(entries, name)
			continue
		}
		h, err := ed.db.WriteTree(ctx, sub)
		if err != nil {
			return Tree{}, err
		}
		entries[name] = TreeEntry{Name: name, Kind: TreeKind, Hash: h}
	}

	flat := make([]TreeEntry, 0, len(entries))
	for _, e := range entries {
		flat = append(flat, e)
	}
	return NewTree(flat...), nil
}
