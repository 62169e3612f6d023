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

package index

import (
	"context"
	"fmt"

	"github.com/dolthub/accountdb/account"
	"github.com/dolthub/accountdb/accounts"
	"github.com/dolthub/accountdb/hash"
)

// Staleness is the result of a staleness check.
type Staleness struct {
	Stale  bool
	Reason string
}

func fresh() Staleness {
	return Staleness{}
}

func stale(format string, args ...interface{}) Staleness {
	return Staleness{Stale: true, Reason: fmt.Sprintf(format, args...)}
}

// StalenessChecker compares index documents with the live account and
// index refs. It catches writes that bypassed the indexer, such as manual
// ref updates.
type StalenessChecker struct {
	accounts *accounts.Accounts
	store    Store
}

func NewStalenessChecker(accts *accounts.Accounts, store Store) *StalenessChecker {
	return &StalenessChecker{accounts: accts, store: store}
}

// Check reports whether the document of account |id| is out of date.
func (c *StalenessChecker) Check(ctx context.Context, id account.ID) (Staleness, error) {
	doc, indexed, err := c.store.Get(ctx, id)
	if err != nil {
		return Staleness{}, err
	}
	tip, err := c.accounts.Log().Database().ResolveRef(ctx, id.RefName())
	if err != nil {
		return Staleness{}, err
	}

	switch {
	case tip.IsEmpty() && !indexed:
		return fresh(), nil
	case tip.IsEmpty():
		return stale("account %d is deleted but still indexed", id), nil
	case !indexed:
		return stale("account %d is not indexed", id), nil
	case doc.MetaID != tip:
		return stale("account %d indexed at %s but its ref is at %s", id, doc.MetaID, tip), nil
	}

	notes, err := c.accounts.ExternalIDs().Load(ctx)
	if err != nil {
		return Staleness{}, err
	}
	if !sameNotes(doc.ExternalIDs, notes.Fingerprint(id)) {
		return stale("external IDs of account %d changed since it was indexed", id), nil
	}
	return fresh(), nil
}

func sameNotes(a, b map[string]hash.Hash) bool {
	if len(a) != len(b) {
		return false
	}
	for k, h := range a {
		if b[k] != h {
			return false
		}
	}
	return true
}
