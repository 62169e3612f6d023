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

package accounts

import (
	"github.com/dolthub/accountdb/account"
	"github.com/dolthub/accountdb/extids"
)

// Delta collects the changes a mutation makes to one account. Setting a
// string property to "" unsets it.
type Delta struct {
	update account.Update
	addIDs []extids.ExternalID
	delIDs []extids.Key
}

func (d *Delta) SetFullName(name string) *Delta {
	d.update.FullName = &name
	return d
}

func (d *Delta) SetDisplayName(name string) *Delta {
	d.update.DisplayName = &name
	return d
}

func (d *Delta) SetPreferredEmail(email string) *Delta {
	d.update.PreferredEmail = &email
	return d
}

func (d *Delta) SetStatus(status string) *Delta {
	d.update.Status = &status
	return d
}

func (d *Delta) SetActive(active bool) *Delta {
	d.update.Active = &active
	return d
}

func (d *Delta) SetPreference(key, value string) *Delta {
	if d.update.Preferences == nil {
		d.update.Preferences = make(map[string]*string)
	}
	d.update.Preferences[key] = &value
	return d
}

func (d *Delta) DeletePreference(key string) *Delta {
	if d.update.Preferences == nil {
		d.update.Preferences = make(map[string]*string)
	}
	d.update.Preferences[key] = nil
	return d
}

// AddExternalID claims |ids| for the account. The AccountID of each is
// ignored.
func (d *Delta) AddExternalID(ids ...extids.ExternalID) *Delta {
	d.addIDs = append(d.addIDs, ids...)
	return d
}

// UpdateExternalID adds |ids| or replaces the account's existing external
// IDs with the same keys.
func (d *Delta) UpdateExternalID(ids ...extids.ExternalID) *Delta {
	return d.AddExternalID(ids...)
}

func (d *Delta) DeleteExternalID(keys ...extids.Key) *Delta {
	d.delIDs = append(d.delIDs, keys...)
	return d
}

// ReplaceExternalID deletes |old| and adds |ids| in one step.
func (d *Delta) ReplaceExternalID(old []extids.Key, ids ...extids.ExternalID) *Delta {
	return d.DeleteExternalID(old...).AddExternalID(ids...)
}

func (d *Delta) AddToken(t account.Token) *Delta {
	d.update.AddTokens = append(d.update.AddTokens, t)
	return d
}

func (d *Delta) DeleteToken(id string) *Delta {
	d.update.DeleteTokens = append(d.update.DeleteTokens, id)
	return d
}

func (d *Delta) AddSSHKey(key string) *Delta {
	d.update.AddSSHKeys = append(d.update.AddSSHKeys, key)
	return d
}

func (d *Delta) DeleteSSHKey(key string) *Delta {
	d.update.DeleteSSHKeys = append(d.update.DeleteSSHKeys, key)
	return d
}

// IsEmpty reports whether nothing was changed.
func (d *Delta) IsEmpty() bool {
	return d.update.IsEmpty() && len(d.addIDs) == 0 && len(d.delIDs) == 0
}
