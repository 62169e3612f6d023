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

// Package retry runs optimistic read-modify-write attempts until one commits
// or a stop strategy gives up. Only lock failures (and errors an
// ExceptionHook opts in) are retried; everything else is returned from the
// first attempt that produced it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/dolthub/accountdb/datas"
)

// ActionType labels what is being retried, for logging and metrics.
type ActionType string

const (
	ActionAccountUpdate ActionType = "account_update"
	ActionIndexUpdate   ActionType = "index_update"
	ActionSequence      ActionType = "sequence"
)

// Outcome classifies a single attempt.
type Outcome int

const (
	Success Outcome = iota
	ConflictRetry
	NonRetryable
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case ConflictRetry:
		return "conflict"
	case NonRetryable:
		return "failure"
	}
	return "unknown"
}

var (
	sleepFn = sleepContext
	now     = time.Now
)

// Attempt describes one finished attempt.
type Attempt struct {
	Action  ActionType
	Number  int
	Outcome Outcome
	Err     error
	Elapsed time.Duration
}

// Listener observes every attempt.
type Listener interface {
	OnAttempt(a Attempt)
}

// ExhaustionListener is optionally implemented by a Listener that wants to
// know when the stop strategy gives up.
type ExhaustionListener interface {
	OnRetriesExhausted(action ActionType, attempts int, cause error)
}

// ExceptionHook adjusts which errors are retried. SkipRetry is consulted
// first and vetoes retrying; ShouldRetry extends retrying to errors that are
// not lock failures.
type ExceptionHook interface {
	ShouldRetry(action ActionType, err error) bool
	SkipRetry(action ActionType, err error) bool
}

// RetriesExhaustedError is returned when the stop strategy ends the loop. It
// wraps the error of the last attempt.
type RetriesExhaustedError struct {
	Action   ActionType
	Attempts int
	Elapsed  time.Duration
	Cause    error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s gave up after %d attempts in %s: the storage backend is contended or unavailable: %v",
		e.Action, e.Attempts, e.Elapsed.Round(time.Millisecond), e.Cause)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Cause
}

// Options configures a Helper. Zero fields take defaults.
type Options struct {
	Stop      StopStrategy
	Wait      WaitStrategy
	Block     BlockStrategy
	Listeners []Listener
	Hooks     []ExceptionHook
	Logger    *logrus.Entry
}

// DefaultOptions returns the options used for zero fields.
func DefaultOptions() Options {
	return Options{
		Stop:   StopAny(StopAfterAttempt(20), StopAfterDelay(20*time.Second)),
		Wait:   ExponentialWait(10*time.Millisecond, time.Second, 1.5),
		Block:  Sleep,
		Logger: logrus.NewEntry(logrus.StandardLogger()),
	}
}

// Helper executes attempts with a fixed policy. It is safe for concurrent
// use.
type Helper struct {
	opts Options
}

func NewHelper(opts Options) *Helper {
	def := DefaultOptions()
	if opts.Stop == nil {
		opts.Stop = def.Stop
	}
	if opts.Wait == nil {
		opts.Wait = def.Wait
	}
	if opts.Block == nil {
		opts.Block = def.Block
	}
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}
	return &Helper{opts: opts}
}

// ExecuteOption adjusts one Execute call.
type ExecuteOption func(*execution)

type execution struct {
	stop    StopStrategy
	retryOn func(error) bool
}

// WithStop overrides the stop strategy for one call.
func WithStop(s StopStrategy) ExecuteOption {
	return func(e *execution) {
		e.stop = s
	}
}

// WithRetryOn additionally retries errors matching |pred|.
func WithRetryOn(pred func(error) bool) ExecuteOption {
	return func(e *execution) {
		e.retryOn = pred
	}
}

// Execute runs |fn| until it succeeds, returns an error that is not
// retryable, or the stop strategy gives up. A non-retryable error is
// returned as is.
func (h *Helper) Execute(ctx context.Context, action ActionType, fn func(ctx context.Context) error, opts ...ExecuteOption) error {
	exec := execution{stop: h.opts.Stop}
	for _, o := range opts {
		o(&exec)
	}

	start := now()
	wait := h.opts.Wait()
	wait.Reset()
	lgr := h.opts.Logger.WithField("action", action)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		elapsed := now().Sub(start)

		outcome := Success
		if err != nil {
			outcome = NonRetryable
			if h.retryable(action, err, exec.retryOn) {
				outcome = ConflictRetry
			}
		}
		h.notify(Attempt{Action: action, Number: attempt, Outcome: outcome, Err: err, Elapsed: elapsed})

		switch outcome {
		case Success:
			if attempt > 1 {
				lgr.WithField("attempts", attempt).Debug("succeeded after retrying")
			}
			return nil
		case NonRetryable:
			return err
		}

		delay := wait.NextBackOff()
		if exec.stop.ShouldStop(attempt, elapsed) || delay == backoff.Stop {
			lgr.WithFields(logrus.Fields{
				"attempts": attempt,
				"elapsed":  elapsed,
			}).WithError(err).Warn("giving up")
			h.notifyExhausted(action, attempt, err)
			return &RetriesExhaustedError{Action: action, Attempts: attempt, Elapsed: elapsed, Cause: err}
		}

		lgr.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).WithError(err).Trace("retrying")
		if err := h.opts.Block.Block(ctx, delay); err != nil {
			return err
		}
	}
}

func (h *Helper) retryable(action ActionType, err error, retryOn func(error) bool) bool {
	for _, hook := range h.opts.Hooks {
		if hook.SkipRetry(action, err) {
			return false
		}
	}
	if errors.Is(err, datas.ErrOptimisticLockFailed) {
		return true
	}
	if retryOn != nil && retryOn(err) {
		return true
	}
	for _, hook := range h.opts.Hooks {
		if hook.ShouldRetry(action, err) {
			return true
		}
	}
	return false
}

func (h *Helper) notify(a Attempt) {
	for _, l := range h.opts.Listeners {
		l.OnAttempt(a)
	}
}

func (h *Helper) notifyExhausted(action ActionType, attempts int, cause error) {
	for _, l := range h.opts.Listeners {
		if el, ok := l.(ExhaustionListener); ok {
			el.OnRetriesExhausted(action, attempts, cause)
		}
	}
}
