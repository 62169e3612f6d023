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

// Package account stores the per-account record. Each account has one ref
// whose commit chain is the account's edit history; the tree at the tip
// holds the account's config files.
package account

import (
	"sort"
	"strconv"
	"time"

	"github.com/dolthub/accountdb/hash"
	"github.com/dolthub/accountdb/ref"
)

// ID identifies an account. IDs are positive, assigned once and never
// reused.
type ID int32

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// RefName returns the name of the ref holding the account's history.
func (id ID) RefName() string {
	return ref.Accounts(int32(id))
}

// IsValid reports whether id could have been allocated.
func (id ID) IsValid() bool {
	return id > 0
}

// ParseID parses the decimal form of an ID.
func ParseID(s string) (ID, bool) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil || n <= 0 {
		return 0, false
	}
	return ID(n), true
}

// IDFromRef returns the ID an account ref belongs to.
func IDFromRef(name string) (ID, bool) {
	id, ok := ref.ParseAccountID(name)
	return ID(id), ok
}

// Account holds the scalar properties of an account.
type Account struct {
	ID             ID
	Registered     time.Time
	FullName       string
	DisplayName    string
	PreferredEmail string
	Status         string
	Inactive       bool

	// MetaID is the commit this Account was read from.
	MetaID hash.Hash
}

func (a Account) IsActive() bool {
	return !a.Inactive
}

// Token is a hashed HTTP access token.
type Token struct {
	ID          string
	HashedToken string
	// Expiration is nil for tokens that never expire.
	Expiration *time.Time
}

// IsExpired reports whether the token has expired at |now|.
func (t Token) IsExpired(now time.Time) bool {
	return t.Expiration != nil && !now.Before(*t.Expiration)
}

// Record is everything stored at an account ref. Records are values;
// modifying one never changes what is stored.
type Record struct {
	Account     Account
	Preferences map[string]string
	Tokens      []Token
	SSHKeys     []string
}

// MetaID is the commit the record was read from.
func (r Record) MetaID() hash.Hash {
	return r.Account.MetaID
}

// Token returns the token with |id|.
func (r Record) Token(id string) (Token, bool) {
	for _, t := range r.Tokens {
		if t.ID == id {
			return t, true
		}
	}
	return Token{}, false
}

func (r Record) clone() Record {
	out := r
	out.Preferences = make(map[string]string, len(r.Preferences))
	for k, v := range r.Preferences {
		out.Preferences[k] = v
	}
	out.Tokens = append([]Token(nil), r.Tokens...)
	out.SSHKeys = append([]string(nil), r.SSHKeys...)
	return out
}

func sortTokens(tokens []Token) {
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].ID < tokens[j].ID
	})
}
