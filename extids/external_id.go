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

// Package extids maintains the index from external identity keys to the
// accounts that own them. The index is a single ref whose tree holds one
// note per key, sharded by the key's hash, so edits to unrelated keys touch
// disjoint sub-trees.
package extids

import (
	"bytes"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/src-d/go-errors.v1"

	"github.com/dolthub/accountdb/account"
	"github.com/dolthub/accountdb/hash"
)

// Well known key schemes.
const (
	SchemeMailto   = "mailto"
	SchemeUsername = "username"
	SchemeGerrit   = "gerrit"
	SchemeExternal = "external"
)

var (
	// ErrDuplicateKey is returned when a key is claimed by another account.
	// Retrying cannot resolve it.
	ErrDuplicateKey = errors.NewKind("duplicate external ID key: %s")

	// ErrInvalidKey is returned for keys without a scheme or an id.
	ErrInvalidKey = errors.NewKind("invalid external ID key: %q")

	// ErrInvalidNote is returned when a stored note cannot be parsed.
	ErrInvalidNote = errors.NewKind("invalid external ID note at %s")
)

// Key identifies an external identity, e.g. "mailto:jane@example.com".
type Key struct {
	Scheme string
	ID     string
}

func NewKey(scheme, id string) Key {
	return Key{Scheme: scheme, ID: id}
}

// ParseKey parses the "scheme:id" form of a key.
func ParseKey(s string) (Key, error) {
	scheme, id, ok := strings.Cut(s, ":")
	if !ok || scheme == "" || id == "" {
		return Key{}, ErrInvalidKey.New(s)
	}
	return Key{Scheme: scheme, ID: id}, nil
}

func (k Key) String() string {
	return k.Scheme + ":" + k.ID
}

func (k Key) IsScheme(scheme string) bool {
	return k.Scheme == scheme
}

// NotePath is the path of the key's note within the index tree.
func (k Key) NotePath() string {
	s := hash.Of([]byte(k.String())).String()
	return s[:2] + "/" + s[2:]
}

// ExternalID binds a Key to the account that owns it.
type ExternalID struct {
	Key       Key
	AccountID account.ID
	Email     string
}

func New(key Key, id account.ID, email string) ExternalID {
	return ExternalID{Key: key, AccountID: id, Email: email}
}

// ForEmail returns the mailto external ID for |email|.
func ForEmail(id account.ID, email string) ExternalID {
	return ExternalID{Key: NewKey(SchemeMailto, email), AccountID: id, Email: email}
}

type noteFile struct {
	ExternalID map[string]noteEntry `toml:"externalId"`
}

type noteEntry struct {
	AccountID int32  `toml:"accountId"`
	Email     string `toml:"email,omitempty"`
}

func encodeNote(e ExternalID) ([]byte, error) {
	var buf bytes.Buffer
	nf := noteFile{ExternalID: map[string]noteEntry{
		e.Key.String(): {AccountID: int32(e.AccountID), Email: e.Email},
	}}
	if err := toml.NewEncoder(&buf).Encode(nf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeNote(path string, data []byte) (ExternalID, error) {
	var nf noteFile
	if _, err := toml.Decode(string(data), &nf); err != nil {
		return ExternalID{}, ErrInvalidNote.Wrap(err, path)
	}
	if len(nf.ExternalID) != 1 {
		return ExternalID{}, ErrInvalidNote.New(path)
	}
	for s, entry := range nf.ExternalID {
		key, err := ParseKey(s)
		if err != nil {
			return ExternalID{}, ErrInvalidNote.Wrap(err, path)
		}
		if key.NotePath() != path {
			return ExternalID{}, ErrInvalidNote.New(path)
		}
		id := account.ID(entry.AccountID)
		if !id.IsValid() {
			return ExternalID{}, ErrInvalidNote.New(path)
		}
		return ExternalID{Key: key, AccountID: id, Email: entry.Email}, nil
	}
	panic("unreachable")
}
