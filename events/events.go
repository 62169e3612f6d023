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

// Package events delivers notifications about committed account changes to
// registered listeners.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/dolthub/accountdb/account"
	"github.com/dolthub/accountdb/hash"
)

// RefChange is one ref moved by a transaction. An empty Old means the ref
// was created, an empty New that it was deleted.
type RefChange struct {
	Name string
	Old  hash.Hash
	New  hash.Hash
}

// AccountChanged reports that a committed transaction changed an account.
type AccountChanged struct {
	AccountID account.ID
	OldMetaID hash.Hash
	NewMetaID hash.Hash
	// ChangedRefs holds every ref the transaction moved, including the
	// external ID index.
	ChangedRefs []RefChange
	Deleted     bool
}

func (ev AccountChanged) String() string {
	return fmt.Sprintf("account %d: %s -> %s", ev.AccountID, ev.OldMetaID, ev.NewMetaID)
}

// Listener is notified after a change has been committed. Errors are
// reported but cannot undo the change.
type Listener interface {
	OnAccountChanged(ctx context.Context, ev AccountChanged) error
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(ctx context.Context, ev AccountChanged) error

func (f ListenerFunc) OnAccountChanged(ctx context.Context, ev AccountChanged) error {
	return f(ctx, ev)
}

type registration struct {
	name string
	l    Listener
}

// Notifier fans events out to its listeners synchronously, in registration
// order.
type Notifier struct {
	mu        sync.RWMutex
	listeners []registration
	lgr       *logrus.Entry
}

func NewNotifier(lgr *logrus.Entry) *Notifier {
	if lgr == nil {
		lgr = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Notifier{lgr: lgr.WithField("component", "notifier")}
}

// Register appends |l| to the listeners. |name| identifies it in logs.
func (n *Notifier) Register(name string, l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, registration{name: name, l: l})
}

// Fire delivers |evs| in order to every listener. A failing or panicking
// listener does not stop delivery to the others; the failures are logged
// and returned together.
func (n *Notifier) Fire(ctx context.Context, evs []AccountChanged) error {
	n.mu.RLock()
	listeners := append([]registration(nil), n.listeners...)
	n.mu.RUnlock()

	var result *multierror.Error
	for _, ev := range evs {
		for _, reg := range listeners {
			if err := deliver(ctx, reg.l, ev); err != nil {
				n.lgr.WithError(err).WithFields(logrus.Fields{
					"listener": reg.name,
					"account":  ev.AccountID,
				}).Warn("account change listener failed")
				result = multierror.Append(result, fmt.Errorf("%s: %w", reg.name, err))
			}
		}
	}
	return result.ErrorOrNil()
}

func deliver(ctx context.Context, l Listener, ev AccountChanged) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.OnAccountChanged(ctx, ev)
}
