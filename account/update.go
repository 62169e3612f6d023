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
	"strings"
	"time"

	"gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrAlreadyExists is returned when creating an account whose ref exists.
	ErrAlreadyExists = errors.NewKind("account %d already exists")

	// ErrTokenConflict is returned when adding a token whose ID is taken.
	ErrTokenConflict = errors.NewKind("token %q already exists for account %d")

	// ErrTooManyTokens is returned when an account would exceed its token limit.
	ErrTooManyTokens = errors.NewKind("account %d cannot have more than %d tokens")

	// ErrInvalidToken is returned for malformed tokens.
	ErrInvalidToken = errors.NewKind("invalid token for account %d: %s")

	// ErrInvalidConfig is returned when a stored config file cannot be parsed.
	ErrInvalidConfig = errors.NewKind("invalid %s for account %d")
)

// TokenLimits bound the tokens an account may hold. Zero values disable a
// limit.
type TokenLimits struct {
	MaxTokens   int
	MaxLifetime time.Duration
}

// Update is a set of changes to a Record. Nil fields are left alone. Setting
// a string field to "" unsets it.
type Update struct {
	FullName       *string
	DisplayName    *string
	PreferredEmail *string
	Status         *string
	Active         *bool

	// Preferences maps keys to new values; a nil value deletes the key.
	Preferences map[string]*string

	AddTokens    []Token
	DeleteTokens []string

	AddSSHKeys    []string
	DeleteSSHKeys []string
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.FullName == nil && u.DisplayName == nil && u.PreferredEmail == nil && u.Status == nil &&
		u.Active == nil && len(u.Preferences) == 0 && len(u.AddTokens) == 0 && len(u.DeleteTokens) == 0 &&
		len(u.AddSSHKeys) == 0 && len(u.DeleteSSHKeys) == 0
}

// Apply returns a copy of r with u applied. r itself is not modified.
func (r Record) Apply(u Update, limits TokenLimits, now time.Time) (Record, error) {
	out := r.clone()
	a := &out.Account
	if u.FullName != nil {
		a.FullName = strings.TrimSpace(*u.FullName)
	}
	if u.DisplayName != nil {
		a.DisplayName = strings.TrimSpace(*u.DisplayName)
	}
	if u.PreferredEmail != nil {
		a.PreferredEmail = strings.TrimSpace(*u.PreferredEmail)
	}
	if u.Status != nil {
		a.Status = strings.TrimSpace(*u.Status)
	}
	if u.Active != nil {
		a.Inactive = !*u.Active
	}

	for k, v := range u.Preferences {
		if v == nil || *v == "" {
			delete(out.Preferences, k)
		} else {
			out.Preferences[k] = *v
		}
	}

	if len(u.DeleteTokens) > 0 {
		del := make(map[string]bool, len(u.DeleteTokens))
		for _, id := range u.DeleteTokens {
			del[id] = true
		}
		kept := out.Tokens[:0]
		for _, t := range out.Tokens {
			if !del[t.ID] {
				kept = append(kept, t)
			}
		}
		out.Tokens = kept
	}
	for _, t := range u.AddTokens {
		if err := validateToken(r.Account.ID, t, limits, now); err != nil {
			return Record{}, err
		}
		if _, ok := out.Token(t.ID); ok {
			return Record{}, ErrTokenConflict.New(t.ID, int32(r.Account.ID))
		}
		out.Tokens = append(out.Tokens, t)
	}
	if limits.MaxTokens > 0 && len(u.AddTokens) > 0 && len(out.Tokens) > limits.MaxTokens {
		return Record{}, ErrTooManyTokens.New(int32(r.Account.ID), limits.MaxTokens)
	}
	sortTokens(out.Tokens)

	if len(u.DeleteSSHKeys) > 0 {
		del := make(map[string]bool, len(u.DeleteSSHKeys))
		for _, k := range u.DeleteSSHKeys {
			del[strings.TrimSpace(k)] = true
		}
		kept := out.SSHKeys[:0]
		for _, k := range out.SSHKeys {
			if !del[k] {
				kept = append(kept, k)
			}
		}
		out.SSHKeys = kept
	}
	for _, k := range u.AddSSHKeys {
		k = strings.TrimSpace(k)
		if k == "" || containsString(out.SSHKeys, k) {
			continue
		}
		out.SSHKeys = append(out.SSHKeys, k)
	}

	return out, nil
}

func validateToken(id ID, t Token, limits TokenLimits, now time.Time) error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrInvalidToken.New(int32(id), "token ID is required")
	}
	if strings.ContainsAny(t.ID, " \t\n\"") {
		return ErrInvalidToken.New(int32(id), "token ID contains invalid characters")
	}
	if t.HashedToken == "" {
		return ErrInvalidToken.New(int32(id), "hashed token is required")
	}
	if t.Expiration != nil && !t.Expiration.After(now) {
		return ErrInvalidToken.New(int32(id), "expiration is in the past")
	}
	if limits.MaxLifetime > 0 {
		if t.Expiration == nil {
			return ErrInvalidToken.New(int32(id), "token must expire within "+limits.MaxLifetime.String())
		}
		if t.Expiration.After(now.Add(limits.MaxLifetime)) {
			return ErrInvalidToken.New(int32(id), "lifetime exceeds maximum of "+limits.MaxLifetime.String())
		}
	}
	return nil
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
