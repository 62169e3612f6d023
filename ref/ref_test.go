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

package ref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccounts(t *testing.T) {
	assert.Equal(t, "refs/accounts/00/1000000", Accounts(1000000))
	assert.Equal(t, "refs/accounts/07/7", Accounts(7))
	assert.Equal(t, "refs/accounts/42/1042", Accounts(1042))
}

func TestParseAccountID(t *testing.T) {
	tests := []struct {
		name string
		id   int32
		ok   bool
	}{
		{"refs/accounts/42/1042", 1042, true},
		{"refs/accounts/07/7", 7, true},
		{"refs/accounts/7/7", 0, false},
		{"refs/accounts/43/1042", 0, false},
		{"refs/accounts/00/0", 0, false},
		{"refs/accounts/42/x", 0, false},
		{"refs/meta/external-ids", 0, false},
		{"refs/accounts/42", 0, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			id, ok := ParseAccountID(test.name)
			assert.Equal(t, test.ok, ok)
			assert.Equal(t, test.id, id)
			assert.Equal(t, test.ok, IsAccount(test.name))
		})
	}
}

func TestSorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Sorted(map[string]int{"c": 1, "a": 2, "b": 3}))
}
