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

// Package config holds the account store's configuration, loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/src-d/go-errors.v1"
	"gopkg.in/yaml.v2"

	"github.com/dolthub/accountdb/account"
	"github.com/dolthub/accountdb/accounts"
	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/chunks/badgerdb"
	"github.com/dolthub/accountdb/chunks/boltdb"
	"github.com/dolthub/accountdb/util/retry"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.NewKind("invalid config: %s")

// Storage backends.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBoltDB  = "boltdb"
	BackendBadger  = "badger"
)

type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Retry      RetryConfig      `yaml:"retry"`
	Cache      CacheConfig      `yaml:"cache"`
	AuthTokens AuthTokensConfig `yaml:"auth_tokens"`
	Committer  CommitterConfig  `yaml:"committer"`
	Sequence   SequenceConfig   `yaml:"sequence"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" default:"memory"`
	// Path is the database file or directory of persistent backends.
	Path       string `yaml:"path,omitempty"`
	SyncWrites *bool  `yaml:"sync_writes,omitempty" default:"true"`
	// ObjectCacheSize is the number of decoded commits and trees kept.
	ObjectCacheSize int `yaml:"object_cache_size" default:"16384"`
}

type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" default:"20"`
	Timeout         time.Duration `yaml:"timeout" default:"20s"`
	InitialInterval time.Duration `yaml:"initial_interval" default:"10ms"`
	MaxInterval     time.Duration `yaml:"max_interval" default:"1s"`
	Multiplier      float64       `yaml:"multiplier" default:"1.5"`
	// NoSleep retries without waiting. Only meant for tests.
	NoSleep bool `yaml:"no_sleep,omitempty"`
}

type CacheConfig struct {
	Accounts            int `yaml:"accounts" default:"1024"`
	History             int `yaml:"history" default:"256"`
	ExternalIDRevisions int `yaml:"external_id_revisions" default:"16"`
}

type AuthTokensConfig struct {
	MaxPerAccount int           `yaml:"max_per_account" default:"10"`
	MaxLifetime   time.Duration `yaml:"max_lifetime,omitempty"`
}

type CommitterConfig struct {
	Name  string `yaml:"name" default:"accountdb"`
	Email string `yaml:"email" default:"accountdb@localhost"`
}

type SequenceConfig struct {
	BatchSize int32 `yaml:"batch_size" default:"1"`
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads and validates the YAML file at |path|.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates YAML. Unset fields take their defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, ErrInvalidConfig.Wrap(err, "yaml")
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	switch cfg.Storage.Backend {
	case BackendMemory:
	case BackendLevelDB, BackendBoltDB, BackendBadger:
		if cfg.Storage.Path == "" {
			return ErrInvalidConfig.New(fmt.Sprintf("storage.path is required for the %s backend", cfg.Storage.Backend))
		}
	default:
		return ErrInvalidConfig.New(fmt.Sprintf("unknown storage.backend %q", cfg.Storage.Backend))
	}
	if cfg.Retry.MaxAttempts <= 0 {
		return ErrInvalidConfig.New("retry.max_attempts must be positive")
	}
	if cfg.Retry.InitialInterval < 0 || cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return ErrInvalidConfig.New("retry.max_interval must be at least retry.initial_interval")
	}
	if cfg.Retry.Multiplier < 1 {
		return ErrInvalidConfig.New("retry.multiplier must be at least 1")
	}
	if cfg.Cache.Accounts < 0 || cfg.Cache.History < 0 || cfg.Cache.ExternalIDRevisions < 0 {
		return ErrInvalidConfig.New("cache sizes must not be negative")
	}
	if cfg.AuthTokens.MaxPerAccount < 0 || cfg.AuthTokens.MaxLifetime < 0 {
		return ErrInvalidConfig.New("auth_tokens limits must not be negative")
	}
	if cfg.Committer.Name == "" || cfg.Committer.Email == "" {
		return ErrInvalidConfig.New("committer.name and committer.email are required")
	}
	if cfg.Sequence.BatchSize <= 0 {
		return ErrInvalidConfig.New("sequence.batch_size must be positive")
	}
	return nil
}

func (cfg *Config) String() string {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err.Error()
	}
	return string(data)
}

// RetryOptions returns the retry policy. Listeners and hooks are left to
// the caller.
func (cfg *Config) RetryOptions(lgr *logrus.Entry) retry.Options {
	rc := cfg.Retry
	opts := retry.Options{
		Stop:   retry.StopAny(retry.StopAfterAttempt(rc.MaxAttempts), retry.StopAfterDelay(rc.Timeout)),
		Wait:   retry.ExponentialWait(rc.InitialInterval, rc.MaxInterval, rc.Multiplier),
		Block:  retry.Sleep,
		Logger: lgr,
	}
	if rc.Timeout <= 0 {
		opts.Stop = retry.StopAfterAttempt(rc.MaxAttempts)
	}
	if rc.NoSleep {
		opts.Block = retry.NoSleep
	}
	return opts
}

func (cfg *Config) TokenLimits() account.TokenLimits {
	return account.TokenLimits{MaxTokens: cfg.AuthTokens.MaxPerAccount, MaxLifetime: cfg.AuthTokens.MaxLifetime}
}

func (cfg *Config) CommitterIdentity() accounts.Identity {
	return accounts.Identity{Name: cfg.Committer.Name, Email: cfg.Committer.Email}
}

// UpdaterOptions returns the options for accounts.NewUpdater.
func (cfg *Config) UpdaterOptions(lgr *logrus.Entry) accounts.Options {
	return accounts.Options{
		Committer:   cfg.CommitterIdentity(),
		TokenLimits: cfg.TokenLimits(),
		Logger:      lgr,
	}
}

// OpenStore opens the configured chunk store.
func (cfg *Config) OpenStore(lgr *logrus.Entry) (chunks.ChunkStore, error) {
	sc := cfg.Storage
	sync := sc.SyncWrites == nil || *sc.SyncWrites
	var cs chunks.ChunkStore
	var err error
	switch sc.Backend {
	case BackendMemory:
		cs = chunks.NewMemoryStore()
	case BackendLevelDB:
		cs, err = chunks.NewLevelDBStore(sc.Path, sync)
	case BackendBoltDB:
		cs, err = boltdb.Open(sc.Path, !sync)
	case BackendBadger:
		bc := badgerdb.DefaultConfig(sc.Path)
		bc.SyncWrites = sync
		bc.Logger = lgr
		cs, err = badgerdb.Open(bc)
	default:
		return nil, ErrInvalidConfig.New(fmt.Sprintf("unknown storage.backend %q", sc.Backend))
	}
	if err != nil {
		return nil, err
	}
	return cs, nil
}
