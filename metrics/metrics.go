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

// Package metrics exports Prometheus metrics for account transactions and
// the chunk store underneath them.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/events"
	"github.com/dolthub/accountdb/util/retry"
)

const namespace = "accountdb"

// Change kinds reported by account_changes_total.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// Metrics records retry attempts and account changes. It implements
// retry.Listener, retry.ExhaustionListener and events.Listener.
type Metrics struct {
	attempts  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	exhausted *prometheus.CounterVec
	changes   *prometheus.CounterVec
	refs      prometheus.Counter
	reg       prometheus.Registerer
}

var (
	_ retry.Listener           = (*Metrics)(nil)
	_ retry.ExhaustionListener = (*Metrics)(nil)
	_ events.Listener          = (*Metrics)(nil)
)

// New registers the metrics on |reg|. A nil |reg| registers nothing, which
// keeps the collectors usable in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Transaction attempts by action and outcome.",
		}, []string{"action", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "attempt_duration_seconds",
			Help:      "Time from the start of an operation to the end of each attempt.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		}, []string{"action"}),
		exhausted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "exhausted_total",
			Help:      "Operations that gave up after retrying.",
		}, []string{"action"}),
		changes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounts",
			Name:      "changes_total",
			Help:      "Committed account changes by kind.",
		}, []string{"kind"}),
		refs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounts",
			Name:      "ref_updates_total",
			Help:      "Refs moved by committed account transactions.",
		}),
		reg: reg,
	}
}

func (m *Metrics) OnAttempt(a retry.Attempt) {
	m.attempts.WithLabelValues(string(a.Action), a.Outcome.String()).Inc()
	m.latency.WithLabelValues(string(a.Action)).Observe(a.Elapsed.Seconds())
}

func (m *Metrics) OnRetriesExhausted(action retry.ActionType, _ int, _ error) {
	m.exhausted.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) OnAccountChanged(_ context.Context, ev events.AccountChanged) error {
	kind := ChangeUpdated
	switch {
	case ev.Deleted:
		kind = ChangeDeleted
	case ev.OldMetaID.IsEmpty():
		kind = ChangeCreated
	}
	m.changes.WithLabelValues(kind).Inc()
	m.refs.Add(float64(len(ev.ChangedRefs)))
	return nil
}

// WatchStore exports the counters of |cs|.
func (m *Metrics) WatchStore(cs chunks.ChunkStore) error {
	if m.reg == nil {
		return nil
	}
	return m.reg.Register(NewStoreCollector(cs))
}

// WatchGauge exports the current value of |fn|, such as a cache size.
func (m *Metrics) WatchGauge(name, help string, fn func() float64) error {
	if m.reg == nil {
		return nil
	}
	return m.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}
