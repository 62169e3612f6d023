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
	"bytes"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Names of the files kept in an account's tree.
const (
	AccountConfig     = "account.config"
	PreferencesConfig = "preferences.config"
	TokensConfig      = "tokens.config"
	AuthorizedKeys    = "authorized_keys"
)

type accountFile struct {
	Account accountSection `toml:"account"`
}

type accountSection struct {
	FullName       string     `toml:"fullName,omitempty"`
	DisplayName    string     `toml:"displayName,omitempty"`
	PreferredEmail string     `toml:"preferredEmail,omitempty"`
	Status         string     `toml:"status,omitempty"`
	Inactive       bool       `toml:"inactive,omitempty"`
	Registered     *time.Time `toml:"registeredOn"`
}

type preferencesFile struct {
	Preferences map[string]string `toml:"preferences"`
}

type tokensFile struct {
	Tokens []tokenSection `toml:"token"`
}

type tokenSection struct {
	ID          string     `toml:"id"`
	HashedToken string     `toml:"hashedToken"`
	Expiration  *time.Time `toml:"expiration"`
}

func encodeTOML(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeFiles returns the files stored in the account tree for |r|. Files
// with no content are omitted.
func EncodeFiles(r Record) (map[string][]byte, error) {
	files := make(map[string][]byte, 4)

	reg := r.Account.Registered.UTC().Truncate(time.Second)
	acct, err := encodeTOML(accountFile{Account: accountSection{
		FullName:       r.Account.FullName,
		DisplayName:    r.Account.DisplayName,
		PreferredEmail: r.Account.PreferredEmail,
		Status:         r.Account.Status,
		Inactive:       r.Account.Inactive,
		Registered:     &reg,
	}})
	if err != nil {
		return nil, err
	}
	files[AccountConfig] = acct

	if len(r.Preferences) > 0 {
		prefs, err := encodeTOML(preferencesFile{Preferences: r.Preferences})
		if err != nil {
			return nil, err
		}
		files[PreferencesConfig] = prefs
	}

	if len(r.Tokens) > 0 {
		tf := tokensFile{}
		for _, t := range r.Tokens {
			ts := tokenSection{ID: t.ID, HashedToken: t.HashedToken}
			if t.Expiration != nil {
				exp := t.Expiration.UTC().Truncate(time.Second)
				ts.Expiration = &exp
			}
			tf.Tokens = append(tf.Tokens, ts)
		}
		tokens, err := encodeTOML(tf)
		if err != nil {
			return nil, err
		}
		files[TokensConfig] = tokens
	}

	if len(r.SSHKeys) > 0 {
		files[AuthorizedKeys] = []byte(strings.Join(r.SSHKeys, "\n") + "\n")
	}

	return files, nil
}

// DecodeFiles parses the files of an account tree.
func DecodeFiles(id ID, files map[string][]byte) (Record, error) {
	r := Record{Account: Account{ID: id}, Preferences: map[string]string{}}

	if data, ok := files[AccountConfig]; ok {
		var af accountFile
		if _, err := toml.Decode(string(data), &af); err != nil {
			return Record{}, ErrInvalidConfig.Wrap(err, AccountConfig, int32(id))
		}
		r.Account.FullName = af.Account.FullName
		r.Account.DisplayName = af.Account.DisplayName
		r.Account.PreferredEmail = af.Account.PreferredEmail
		r.Account.Status = af.Account.Status
		r.Account.Inactive = af.Account.Inactive
		if af.Account.Registered != nil {
			r.Account.Registered = af.Account.Registered.UTC()
		}
	}

	if data, ok := files[PreferencesConfig]; ok {
		var pf preferencesFile
		if _, err := toml.Decode(string(data), &pf); err != nil {
			return Record{}, ErrInvalidConfig.Wrap(err, PreferencesConfig, int32(id))
		}
		for k, v := range pf.Preferences {
			r.Preferences[k] = v
		}
	}

	if data, ok := files[TokensConfig]; ok {
		var tf tokensFile
		if _, err := toml.Decode(string(data), &tf); err != nil {
			return Record{}, ErrInvalidConfig.Wrap(err, TokensConfig, int32(id))
		}
		for _, ts := range tf.Tokens {
			t := Token{ID: ts.ID, HashedToken: ts.HashedToken}
			if ts.Expiration != nil {
				exp := ts.Expiration.UTC()
				t.Expiration = &exp
			}
			r.Tokens = append(r.Tokens, t)
		}
		sortTokens(r.Tokens)
	}

	if data, ok := files[AuthorizedKeys]; ok {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				r.SSHKeys = append(r.SSHKeys, line)
			}
		}
	}

	return r, nil
}
