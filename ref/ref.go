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

// Package ref names the refs the store keeps: one per account, one for the
// external ID index and one per sequence.
package ref

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	Prefix = "refs/"

	// AccountsPrefix is the parent of every account ref.
	AccountsPrefix = "refs/accounts/"

	// ExternalIDs is the single shared ref of the external ID index.
	ExternalIDs = "refs/meta/external-ids"

	// SequenceAccounts holds the next unallocated account ID.
	SequenceAccounts = "refs/sequences/accounts"
)

// Accounts returns the ref for account |id|. Refs are sharded by the last two
// digits of the ID so no directory grows without bound.
func Accounts(id int32) string {
	return fmt.Sprintf("%s%02d/%d", AccountsPrefix, id%100, id)
}

// ParseAccountID extracts the account ID from an account ref name.
func ParseAccountID(name string) (int32, bool) {
	rest, ok := strings.CutPrefix(name, AccountsPrefix)
	if !ok {
		return 0, false
	}
	shard, idStr, ok := strings.Cut(rest, "/")
	if !ok || len(shard) != 2 {
		return 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 32)
	if err != nil || id <= 0 {
		return 0, false
	}
	if Accounts(int32(id)) != name {
		return 0, false
	}
	return int32(id), true
}

// IsAccount reports whether |name| is a well-formed account ref.
func IsAccount(name string) bool {
	_, ok := ParseAccountID(name)
	return ok
}

// Sorted returns the names of |refs| in order.
func Sorted[V any](refs map[string]V) []string {
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
