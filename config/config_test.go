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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/accountdb/util/retry"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	require.NotNil(t, cfg.Storage.SyncWrites)
	assert.True(t, *cfg.Storage.SyncWrites)
	assert.Equal(t, 16384, cfg.Storage.ObjectCacheSize)
	assert.Equal(t, 20, cfg.Retry.MaxAttempts)
	assert.Equal(t, 20*time.Second, cfg.Retry.Timeout)
	assert.Equal(t, 10*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, time.Second, cfg.Retry.MaxInterval)
	assert.Equal(t, 1.5, cfg.Retry.Multiplier)
	assert.Equal(t, 1024, cfg.Cache.Accounts)
	assert.Equal(t, 256, cfg.Cache.History)
	assert.Equal(t, 16, cfg.Cache.ExternalIDRevisions)
	assert.Equal(t, 10, cfg.AuthTokens.MaxPerAccount)
	assert.Equal(t, int32(1), cfg.Sequence.BatchSize)
	assert.NoError(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
storage:
  backend: leveldb
  path: /var/lib/accounts
  sync_writes: false
retry:
  max_attempts: 5
  timeout: 3s
  no_sleep: true
auth_tokens:
  max_per_account: 2
  max_lifetime: 720h
committer:
  name: Admin
  email: admin@example.com
`))
	require.NoError(t, err)
	assert.Equal(t, BackendLevelDB, cfg.Storage.Backend)
	require.NotNil(t, cfg.Storage.SyncWrites)
	assert.False(t, *cfg.Storage.SyncWrites)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.Retry.Timeout)
	assert.True(t, cfg.Retry.NoSleep)
	// untouched fields keep their defaults
	assert.Equal(t, time.Second, cfg.Retry.MaxInterval)
	assert.Equal(t, 1024, cfg.Cache.Accounts)

	lim := cfg.TokenLimits()
	assert.Equal(t, 2, lim.MaxTokens)
	assert.Equal(t, 720*time.Hour, lim.MaxLifetime)

	id := cfg.CommitterIdentity()
	assert.Equal(t, "Admin", id.Name)
	assert.Equal(t, "admin@example.com", id.Email)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "storage:\n  flavor: vanilla\n"},
		{"unknown backend", "storage:\n  backend: tape\n"},
		{"missing path", "storage:\n  backend: boltdb\n"},
		{"bad duration", "retry:\n  timeout: soon\n"},
		{"negative attempts", "retry:\n  max_attempts: -1\n"},
		{"small multiplier", "retry:\n  multiplier: 0.5\n"},
		{"inverted intervals", "retry:\n  initial_interval: 2s\n  max_interval: 1s\n"},
		{"negative cache", "cache:\n  accounts: -5\n"},
		{"negative tokens", "auth_tokens:\n  max_per_account: -1\n"},
		{"negative batch", "sequence:\n  batch_size: -3\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.yaml))
			require.Error(t, err)
			assert.True(t, ErrInvalidConfig.Is(err), err.Error())
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accountdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  accounts: 7\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Cache.Accounts)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestStringRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Retry.Timeout = 90 * time.Second
	cfg.Committer.Name = "Robot"

	out, err := Parse([]byte(cfg.String()))
	require.NoError(t, err)
	assert.Equal(t, cfg, out)
}

func TestRetryOptions(t *testing.T) {
	cfg := Default()
	cfg.Retry.MaxAttempts = 3
	opts := cfg.RetryOptions(nil)
	assert.False(t, opts.Stop.ShouldStop(2, 0))
	assert.True(t, opts.Stop.ShouldStop(3, 0))
	assert.True(t, opts.Stop.ShouldStop(1, time.Minute))
	assert.Equal(t, retry.Sleep, opts.Block)

	cfg.Retry.NoSleep = true
	cfg.Retry.Timeout = 0
	opts = cfg.RetryOptions(nil)
	assert.False(t, opts.Stop.ShouldStop(1, time.Hour))
	assert.Equal(t, retry.NoSleep, opts.Block)
}

func TestOpenStore(t *testing.T) {
	for _, backend := range []string{BackendMemory, BackendLevelDB, BackendBoltDB, BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			cfg := Default()
			cfg.Storage.Backend = backend
			if backend != BackendMemory {
				cfg.Storage.Path = filepath.Join(t.TempDir(), "store")
			}
			require.NoError(t, cfg.Validate())
			cs, err := cfg.OpenStore(nil)
			require.NoError(t, err)
			require.NotNil(t, cs)
			assert.NoError(t, cs.Close())
		})
	}
}
