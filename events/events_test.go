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

package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/accountdb/account"
)

func TestNotifierOrder(t *testing.T) {
	n := NewNotifier(nil)
	var got []string
	record := func(name string) Listener {
		return ListenerFunc(func(ctx context.Context, ev AccountChanged) error {
			got = append(got, name+":"+ev.AccountID.String())
			return nil
		})
	}
	n.Register("a", record("a"))
	n.Register("b", record("b"))

	err := n.Fire(context.Background(), []AccountChanged{{AccountID: 1}, {AccountID: 2}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:1", "a:2", "b:2"}, got)
}

func TestNotifierFailures(t *testing.T) {
	n := NewNotifier(nil)
	var delivered []account.ID
	n.Register("fails", ListenerFunc(func(ctx context.Context, ev AccountChanged) error {
		return errors.New("index unavailable")
	}))
	n.Register("panics", ListenerFunc(func(ctx context.Context, ev AccountChanged) error {
		panic("boom")
	}))
	n.Register("ok", ListenerFunc(func(ctx context.Context, ev AccountChanged) error {
		delivered = append(delivered, ev.AccountID)
		return nil
	}))

	err := n.Fire(context.Background(), []AccountChanged{{AccountID: 7}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fails: index unavailable")
	assert.Contains(t, err.Error(), "panics: panic: boom")
	assert.Equal(t, []account.ID{7}, delivered)
}

func TestNotifierNoListeners(t *testing.T) {
	assert.NoError(t, NewNotifier(nil).Fire(context.Background(), []AccountChanged{{AccountID: 1}}))
}
