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

// Package repo assembles an account repository from its configuration: the
// chunk store, the account and external ID logs, the updater, the caches,
// the search index and the account ID sequence.
package repo

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/dolthub/accountdb/account"
	"github.com/dolthub/accountdb/accounts"
	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/config"
	"github.com/dolthub/accountdb/datas"
	"github.com/dolthub/accountdb/events"
	"github.com/dolthub/accountdb/extids"
	"github.com/dolthub/accountdb/index"
	"github.com/dolthub/accountdb/metrics"
	"github.com/dolthub/accountdb/sequence"
	"github.com/dolthub/accountdb/util/retry"
)

type Repo struct {
	Config      *config.Config
	DB          *datas.Database
	Log         *account.Log
	ExternalIDs *extids.Store
	Accounts    *accounts.Accounts
	Cache       *accounts.Cache
	Notifier    *events.Notifier
	Updater     *accounts.Updater
	Index       *index.MemoryStore
	Indexer     *index.Indexer
	Staleness   *index.StalenessChecker
	Sequence    *sequence.RepoSequence
	Metrics     *metrics.Metrics
}

// Open builds a Repo. Metrics are registered on |reg| when it is not nil.
// Listeners run in registration order: the cache is evicted before the
// index reads the account back.
func Open(cfg *config.Config, lgr *logrus.Entry, reg prometheus.Registerer) (*Repo, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if lgr == nil {
		lgr = logrus.NewEntry(logrus.StandardLogger())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cs, err := cfg.OpenStore(lgr.WithField("component", "store"))
	if err != nil {
		return nil, err
	}
	m := metrics.New(reg)
	if err := m.WatchStore(cs); err != nil {
		cs.Close()
		return nil, err
	}

	retryOpts := cfg.RetryOptions(lgr.WithField("component", "retry"))
	retryOpts.Listeners = append(retryOpts.Listeners, m)
	helper := retry.NewHelper(retryOpts)

	db := datas.NewDatabase(cs, cfg.Storage.ObjectCacheSize)
	log := account.NewLog(db, lgr)
	ext := extids.NewStore(db, cfg.Cache.ExternalIDRevisions, lgr)
	accts := accounts.NewAccounts(log, ext)
	cache := accounts.NewCache(accts, cfg.Cache.Accounts, cfg.Cache.History, lgr)
	store := index.NewMemoryStore()
	indexer := index.NewIndexer(accts, cache, store, lgr)

	notifier := events.NewNotifier(lgr)
	notifier.Register("account-cache", cache)
	notifier.Register("account-index", indexer)
	notifier.Register("metrics", m)

	if err := m.WatchGauge("cache_accounts", "Accounts held by the account cache.", func() float64 {
		return float64(cache.Len())
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Repo{
		Config:      cfg,
		DB:          db,
		Log:         log,
		ExternalIDs: ext,
		Accounts:    accts,
		Cache:       cache,
		Notifier:    notifier,
		Updater:     accounts.NewUpdater(accts, notifier, helper, cfg.UpdaterOptions(lgr)),
		Index:       store,
		Indexer:     indexer,
		Staleness:   index.NewStalenessChecker(accts, store),
		Sequence:    sequence.NewAccountSequence(db, cfg.Sequence.BatchSize, helper),
		Metrics:     m,
	}, nil
}

// Create allocates the next account ID and inserts the account.
func (r *Repo) Create(ctx context.Context, message string, m accounts.Mutation) (accounts.State, error) {
	next, err := r.Sequence.Next(ctx)
	if err != nil {
		return accounts.State{}, err
	}
	return r.Updater.Insert(ctx, message, account.ID(next), m)
}

// Stats returns the chunk store counters.
func (r *Repo) Stats() chunks.Stats {
	return r.DB.ChunkStore().Stats()
}

func (r *Repo) Close() error {
	return r.DB.Close()
}
