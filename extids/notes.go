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
	"sort"

	"github.com/dolthub/accountdb/account"
	"github.com/dolthub/accountdb/datas"
	"github.com/dolthub/accountdb/hash"
)

// Notes is the content of the index at one revision. Notes are immutable
// and safe for concurrent use.
type Notes struct {
	rev       hash.Hash
	tree      datas.Tree
	byKey     map[Key]ExternalID
	noteHash  map[Key]hash.Hash
	byAccount map[account.ID][]Key
}

func emptyNotes() *Notes {
	return &Notes{
		tree:      datas.EmptyTree,
		byKey:     map[Key]ExternalID{},
		noteHash:  map[Key]hash.Hash{},
		byAccount: map[account.ID][]Key{},
	}
}

func (n *Notes) add(e ExternalID, h hash.Hash) {
	n.byKey[e.Key] = e
	n.noteHash[e.Key] = h
	n.byAccount[e.AccountID] = append(n.byAccount[e.AccountID], e.Key)
}

// Rev is the index commit the notes were read from; empty if the index
// has never been written.
func (n *Notes) Rev() hash.Hash {
	return n.rev
}

func (n *Notes) Len() int {
	return len(n.byKey)
}

// Lookup returns the external ID for |key|. The second return is false if
// no account has claimed it.
func (n *Notes) Lookup(key Key) (ExternalID, bool) {
	e, ok := n.byKey[key]
	return e, ok
}

// ByAccount returns the external IDs owned by |id|, ordered by key.
func (n *Notes) ByAccount(id account.ID) []ExternalID {
	keys := n.byAccount[id]
	out := make([]ExternalID, 0, len(keys))
	for _, k := range keys {
		out = append(out, n.byKey[k])
	}
	sortExternalIDs(out)
	return out
}

// ByEmail returns the external IDs carrying |email|, ordered by key.
func (n *Notes) ByEmail(email string) []ExternalID {
	var out []ExternalID
	for _, e := range n.byKey {
		if e.Email == email {
			out = append(out, e)
		}
	}
	sortExternalIDs(out)
	return out
}

// All returns every external ID, ordered by key.
func (n *Notes) All() []ExternalID {
	out := make([]ExternalID, 0, len(n.byKey))
	for _, e := range n.byKey {
		out = append(out, e)
	}
	sortExternalIDs(out)
	return out
}

// NoteHash returns the address of the note stored for |key|.
func (n *Notes) NoteHash(key Key) (hash.Hash, bool) {
	h, ok := n.noteHash[key]
	return h, ok
}

// Fingerprint maps each key owned by |id| to the address of its note. Two
// fingerprints are equal iff the account's notes are byte-for-byte equal.
func (n *Notes) Fingerprint(id account.ID) map[string]hash.Hash {
	keys := n.byAccount[id]
	fp := make(map[string]hash.Hash, len(keys))
	for _, k := range keys {
		fp[k.String()] = n.noteHash[k]
	}
	return fp
}

func sortExternalIDs(ids []ExternalID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Key.String() < ids[j].Key.String()
	})
}

// Patch is a pending set of index changes proposed against one revision.
// Proposals are checked against the revision plus everything proposed
// before them, so one patch can carry the changes of a whole batch.
type Patch struct {
	base    *Notes
	adds    map[Key]ExternalID
	removes map[Key]ExternalID
}

// NewPatch returns an empty patch against n.
func (n *Notes) NewPatch() *Patch {
	return &Patch{
		base:    n,
		adds:    map[Key]ExternalID{},
		removes: map[Key]ExternalID{},
	}
}

// Base returns the revision the patch applies to.
func (p *Patch) Base() *Notes {
	return p.base
}

func (p *Patch) lookup(key Key) (ExternalID, bool) {
	if e, ok := p.adds[key]; ok {
		return e, true
	}
	if _, ok := p.removes[key]; ok {
		return ExternalID{}, false
	}
	return p.base.Lookup(key)
}

// Propose records that account |id| drops |removes| and claims |adds|.
// Removals are applied first, so a key may be removed and re-added with a
// new email. Removing a key the account does not hold is a no-op, as is
// re-adding a key it already holds unchanged. Claiming or removing a key
// that belongs to another account returns ErrDuplicateKey.
func (p *Patch) Propose(id account.ID, adds []ExternalID, removes []Key) error {
	for _, k := range removes {
		if cur, ok := p.lookup(k); ok && cur.AccountID != id {
			return ErrDuplicateKey.New(k.String())
		}
	}
	for _, e := range adds {
		if e.Key.Scheme == "" || e.Key.ID == "" {
			return ErrInvalidKey.New(e.Key.String())
		}
		if cur, ok := p.lookup(e.Key); ok && cur.AccountID != id {
			return ErrDuplicateKey.New(e.Key.String())
		}
	}

	for _, k := range removes {
		if _, ok := p.lookup(k); ok {
			p.remove(k)
		}
	}
	for _, e := range adds {
		e.AccountID = id
		cur, ok := p.lookup(e.Key)
		if ok && cur == e {
			continue
		}
		if ok {
			p.remove(e.Key)
		}
		p.adds[e.Key] = e
	}
	return nil
}

func (p *Patch) remove(k Key) {
	delete(p.adds, k)
	if base, ok := p.base.Lookup(k); ok {
		p.removes[k] = base
	}
}

// IsEmpty reports whether applying the patch would change nothing.
func (p *Patch) IsEmpty() bool {
	return len(p.Adds()) == 0 && len(p.Removes()) == 0
}

// Touches reports whether the patch changes any key of account |id|.
func (p *Patch) Touches(id account.ID) bool {
	_, ok := p.touched()[id]
	return ok
}

// Accounts returns the accounts whose keys the patch changes.
func (p *Patch) Accounts() []account.ID {
	touched := p.touched()
	out := make([]account.ID, 0, len(touched))
	for id := range touched {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p *Patch) touched() map[account.ID]struct{} {
	touched := make(map[account.ID]struct{})
	for _, e := range p.Adds() {
		touched[e.AccountID] = struct{}{}
	}
	for k, e := range p.removes {
		if a, ok := p.adds[k]; ok && a == e {
			continue
		}
		touched[e.AccountID] = struct{}{}
	}
	return touched
}

// Adds returns the external IDs the patch writes, ordered by key. Keys
// re-added unchanged are left out.
func (p *Patch) Adds() []ExternalID {
	out := make([]ExternalID, 0, len(p.adds))
	for _, e := range p.adds {
		if base, ok := p.base.Lookup(e.Key); ok && base == e {
			continue
		}
		out = append(out, e)
	}
	sortExternalIDs(out)
	return out
}

// Removes returns the external IDs the patch deletes, ordered by key.
func (p *Patch) Removes() []ExternalID {
	out := make([]ExternalID, 0, len(p.removes))
	for _, e := range p.removes {
		if _, ok := p.adds[e.Key]; !ok {
			out = append(out, e)
		}
	}
	sortExternalIDs(out)
	return out
}
