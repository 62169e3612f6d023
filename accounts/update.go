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
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/src-d/go-errors.v1"

	"github.com/dolthub/accountdb/account"
	"github.com/dolthub/accountdb/chunks"
	"github.com/dolthub/accountdb/datas"
	"github.com/dolthub/accountdb/events"
	"github.com/dolthub/accountdb/extids"
	"github.com/dolthub/accountdb/ref"
	"github.com/dolthub/accountdb/util/retry"
)

// ErrIllegalArgument is returned for malformed requests. It is never
// retried.
var ErrIllegalArgument = errors.NewKind("illegal argument: %s")

// Mutation changes an account through |d|. It may run more than once, so it
// must not have side effects.
type Mutation func(d *Delta)

// ConditionalMutation is a Mutation that sees the state it is applied to.
// An error aborts the transaction and is returned to the caller unchanged.
type ConditionalMutation func(s State, d *Delta) error

// UpdateArguments is one account's part of a batch.
type UpdateArguments struct {
	Message string
	ID      account.ID
	Mutate  ConditionalMutation
}

// Result is the outcome for one account of a batch. Found is false if the
// account did not exist, in which case nothing was written for it.
type Result struct {
	State State
	Found bool
}

// Identity names the author or committer of account commits.
type Identity struct {
	Name  string
	Email string
}

// Hooks run at fixed points of every attempt.
type Hooks struct {
	// AfterReadRevision runs after the attempt's reads and before the
	// mutations are applied.
	AfterReadRevision func()
	// BeforeCommit runs after all objects are written and before the refs
	// are moved.
	BeforeCommit func()
}

type Options struct {
	Committer   Identity
	TokenLimits account.TokenLimits
	Hooks       Hooks
	Logger      *logrus.Entry
}

// Updater runs read-modify-write transactions over accounts and the
// external ID index. Each attempt writes all new objects and then moves
// every affected ref, the index ref included, in one atomic compare and
// swap. Attempts that lose a race are retried by the retry helper.
type Updater struct {
	log      *account.Log
	ext      *extids.Store
	notifier *events.Notifier
	retry    *retry.Helper
	author   Identity
	opts     Options
	lgr      *logrus.Entry
}

// NewUpdater returns an Updater. |notifier| may be nil.
func NewUpdater(reader *Accounts, notifier *events.Notifier, helper *retry.Helper, opts Options) *Updater {
	if helper == nil {
		helper = retry.NewHelper(retry.Options{})
	}
	lgr := opts.Logger
	if lgr == nil {
		lgr = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Updater{
		log:      reader.log,
		ext:      reader.ext,
		notifier: notifier,
		retry:    helper,
		author:   opts.Committer,
		opts:     opts,
		lgr:      lgr.WithField("component", "accounts-update"),
	}
}

// WithAuthor returns an Updater whose commits are authored by |author|.
func (u *Updater) WithAuthor(author Identity) *Updater {
	cp := *u
	cp.author = author
	return &cp
}

type opKind int

const (
	opUpdate opKind = iota
	opInsert
	opDelete
)

type pending struct {
	args UpdateArguments
	op   opKind

	// set once the account has been read and mutated; cleared when its
	// ref loses a race
	prepared bool
	exists   bool
	cur      State
	next     account.Record
	delta    Delta
}

func (p *pending) participates() bool {
	if p.op == opInsert {
		return true
	}
	return p.exists
}

// Update applies |m| to account |id|. The second return is false if the
// account does not exist.
func (u *Updater) Update(ctx context.Context, message string, id account.ID, m Mutation) (State, bool, error) {
	return u.UpdateWithState(ctx, message, id, func(_ State, d *Delta) error {
		m(d)
		return nil
	})
}

// UpdateWithState applies |m| to account |id|, giving it the current state.
func (u *Updater) UpdateWithState(ctx context.Context, message string, id account.ID, m ConditionalMutation) (State, bool, error) {
	res, err := u.run(ctx, []*pending{{args: UpdateArguments{Message: message, ID: id, Mutate: m}, op: opUpdate}})
	if err != nil {
		return State{}, false, err
	}
	return res[0].State, res[0].Found, nil
}

// Insert creates account |id|, which must not exist yet. It returns
// account.ErrAlreadyExists otherwise.
func (u *Updater) Insert(ctx context.Context, message string, id account.ID, m Mutation) (State, error) {
	mutate := func(_ State, d *Delta) error {
		if m != nil {
			m(d)
		}
		return nil
	}
	res, err := u.run(ctx, []*pending{{args: UpdateArguments{Message: message, ID: id, Mutate: mutate}, op: opInsert}})
	if err != nil {
		return State{}, err
	}
	return res[0].State, nil
}

// UpdateBatch applies every mutation in |args| in one transaction. The
// accounts must be distinct. Results are in the order of |args|.
func (u *Updater) UpdateBatch(ctx context.Context, args []UpdateArguments) ([]Result, error) {
	if len(args) == 0 {
		return nil, nil
	}
	items := make([]*pending, len(args))
	for i, a := range args {
		items[i] = &pending{args: a, op: opUpdate}
	}
	return u.run(ctx, items)
}

// Delete removes account |id| and all of its external IDs. It returns false
// if the account did not exist.
func (u *Updater) Delete(ctx context.Context, message string, id account.ID) (bool, error) {
	res, err := u.run(ctx, []*pending{{args: UpdateArguments{Message: message, ID: id}, op: opDelete}})
	if err != nil {
		return false, err
	}
	return res[0].Found, nil
}

func validate(items []*pending) error {
	seen := make(map[account.ID]struct{}, len(items))
	for _, p := range items {
		if !p.args.ID.IsValid() {
			return ErrIllegalArgument.New(fmt.Sprintf("invalid account id %d", p.args.ID))
		}
		if _, ok := seen[p.args.ID]; ok {
			return ErrIllegalArgument.New("updates must all be for different accounts")
		}
		seen[p.args.ID] = struct{}{}
	}
	return nil
}

type committed struct {
	results []Result
	events  []events.AccountChanged
}

func (u *Updater) run(ctx context.Context, items []*pending) ([]Result, error) {
	if err := validate(items); err != nil {
		return nil, err
	}
	lgr := u.lgr.WithField("txn", uuid.NewString())

	var out committed
	attempt := 0
	err := u.retry.Execute(ctx, retry.ActionAccountUpdate, func(ctx context.Context) error {
		attempt++
		var err error
		out, err = u.attempt(ctx, lgr.WithField("attempt", attempt), items)
		return err
	})
	if err != nil {
		return nil, err
	}

	if u.notifier != nil && len(out.events) > 0 {
		// failures are logged by the notifier and cannot undo the commit
		_ = u.notifier.Fire(ctx, out.events)
	}
	return out.results, nil
}

// read loads every account that is not prepared.
func (u *Updater) read(ctx context.Context, items []*pending) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, p := range items {
		if p.prepared {
			continue
		}
		eg.Go(func() error {
			rec, ok, err := u.log.Read(ctx, p.args.ID)
			if err != nil {
				return err
			}
			p.exists = ok
			p.cur = State{Record: rec}
			return nil
		})
	}
	return eg.Wait()
}

func (u *Updater) attempt(ctx context.Context, lgr *logrus.Entry, items []*pending) (committed, error) {
	var fresh []*pending
	for _, p := range items {
		if !p.prepared {
			fresh = append(fresh, p)
		}
	}
	if err := u.read(ctx, fresh); err != nil {
		return committed{}, err
	}
	notes, err := u.ext.Load(ctx)
	if err != nil {
		return committed{}, err
	}
	lgr = lgr.WithField("rev", notes.Rev().String())

	for _, p := range fresh {
		id := p.args.ID
		if p.op == opInsert {
			if p.exists {
				return committed{}, account.ErrAlreadyExists.New(int32(id))
			}
			p.cur = State{Record: account.Record{
				Account:     account.Account{ID: id},
				Preferences: map[string]string{},
			}}
		}
		if p.participates() {
			p.cur.ExternalIDs = notes.ByAccount(id)
			p.cur.IndexRev = notes.Rev()
		}
	}

	if u.opts.Hooks.AfterReadRevision != nil {
		u.opts.Hooks.AfterReadRevision()
	}

	now := datas.CommitterDate()
	for _, p := range fresh {
		p.delta = Delta{}
		p.next = p.cur.Record
		if p.participates() && p.op != opDelete && p.args.Mutate != nil {
			if err := p.args.Mutate(p.cur, &p.delta); err != nil {
				return committed{}, err
			}
			if p.next, err = p.cur.Record.Apply(p.delta.update, u.opts.TokenLimits, now); err != nil {
				return committed{}, err
			}
		}
		p.prepared = true
	}

	patch := notes.NewPatch()
	for _, p := range items {
		if !p.participates() {
			continue
		}
		if p.op == opDelete {
			owned := notes.ByAccount(p.args.ID)
			keys := make([]extids.Key, len(owned))
			for i, e := range owned {
				keys[i] = e.Key
			}
			err = patch.Propose(p.args.ID, nil, keys)
		} else {
			err = patch.Propose(p.args.ID, p.delta.addIDs, p.delta.delIDs)
		}
		if err != nil {
			return committed{}, err
		}
	}

	msg := items[0].args.Message
	if len(items) > 1 {
		msg = fmt.Sprintf("Batch update for %d accounts", len(items))
	}
	idxMeta, err := u.commitMeta(msg)
	if err != nil {
		return committed{}, err
	}
	idx, err := u.ext.Stage(ctx, patch, idxMeta)
	if err != nil {
		return committed{}, err
	}

	var updates []chunks.RefUpdate
	if idx.Changed {
		updates = append(updates, idx.Update)
	}
	staged := make([]account.Staged, len(items))
	for i, p := range items {
		if !p.participates() {
			continue
		}
		if p.op == opDelete {
			staged[i] = account.Staged{ID: p.args.ID, Update: account.DeleteUpdate(p.args.ID, p.cur.MetaID()), Changed: true}
			updates = append(updates, staged[i].Update)
			continue
		}
		meta, err := u.commitMeta(p.args.Message)
		if err != nil {
			return committed{}, err
		}
		if rev := idx.Notes.Rev(); !rev.IsEmpty() {
			meta = meta.WithTrailer(IndexRevTrailer, rev.String())
		}
		force := p.op == opInsert || patch.Touches(p.args.ID)
		if staged[i], err = u.log.Stage(ctx, p.cur.Record, p.next, meta, force); err != nil {
			return committed{}, err
		}
		if staged[i].Changed {
			updates = append(updates, staged[i].Update)
		}
	}

	if len(updates) > 0 {
		if u.opts.Hooks.BeforeCommit != nil {
			u.opts.Hooks.BeforeCommit()
		}
		if err := u.log.Database().CommitRefs(ctx, updates); err != nil {
			if ce, ok := err.(*datas.ConflictError); ok {
				for _, p := range items {
					if ce.Conflicts(p.args.ID.RefName()) {
						p.prepared = false
					}
				}
				lgr.WithField("refs", ce.Refs).Trace("lost race on ref update")
			}
			return committed{}, err
		}
		u.ext.Prime(idx.Notes)
		lgr.WithField("refs", len(updates)).Debug("committed account update")
	}

	return u.collect(items, staged, idx), nil
}

func (u *Updater) collect(items []*pending, staged []account.Staged, idx extids.Staged) committed {
	final := idx.Notes
	var idxChange []events.RefChange
	if idx.Changed {
		idxChange = []events.RefChange{{Name: ref.ExternalIDs, Old: idx.Update.Old, New: idx.Update.New}}
	}

	var out committed
	out.results = make([]Result, len(items))
	for i, p := range items {
		if !p.participates() {
			continue
		}
		id := p.args.ID
		s := staged[i]
		if p.op == opDelete {
			out.results[i] = Result{State: p.cur, Found: true}
		} else {
			out.results[i] = Result{
				State: State{Record: s.Record, ExternalIDs: final.ByAccount(id), IndexRev: final.Rev()},
				Found: true,
			}
		}
		if !s.Changed {
			continue
		}
		changes := append([]events.RefChange{{Name: s.Update.Name, Old: s.Update.Old, New: s.Update.New}}, idxChange...)
		out.events = append(out.events, events.AccountChanged{
			AccountID:   id,
			OldMetaID:   p.cur.MetaID(),
			NewMetaID:   s.Update.New,
			ChangedRefs: changes,
			Deleted:     p.op == opDelete,
		})
	}
	return out
}

func (u *Updater) commitMeta(message string) (datas.CommitMeta, error) {
	author := u.author
	if author.Name == "" {
		author = u.opts.Committer
	}
	meta, err := datas.NewCommitMetaWithAuthorCommitter(author.Name, author.Email, message, datas.CommitterDate(),
		u.opts.Committer.Name, u.opts.Committer.Email)
	if err != nil {
		return datas.CommitMeta{}, err
	}
	return *meta, nil
}
