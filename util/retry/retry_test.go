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

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/accountdb/datas"
)

type recordingListener struct {
	attempts  []Attempt
	exhausted int
}

func (l *recordingListener) OnAttempt(a Attempt) {
	l.attempts = append(l.attempts, a)
}

func (l *recordingListener) OnRetriesExhausted(ActionType, int, error) {
	l.exhausted++
}

type hook struct {
	retry error
	skip  error
}

func (h hook) ShouldRetry(_ ActionType, err error) bool {
	return h.retry != nil && errors.Is(err, h.retry)
}

func (h hook) SkipRetry(_ ActionType, err error) bool {
	return h.skip != nil && errors.Is(err, h.skip)
}

func conflict() error {
	return &datas.ConflictError{Refs: []string{"refs/accounts/01/1"}}
}

func TestSuccessOnFirstAttempt(t *testing.T) {
	l := &recordingListener{}
	h := NewHelper(Options{Block: NoSleep, Listeners: []Listener{l}})
	calls := 0
	err := h.Execute(context.Background(), ActionAccountUpdate, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, l.attempts, 1)
	assert.Equal(t, Success, l.attempts[0].Outcome)
}

func TestSuccessOnRetry(t *testing.T) {
	assert := assert.New(t)

	test := func(nRetries int) {
		sleepCount := 0
		sleepFn = func(_ context.Context, d time.Duration) error {
			sleepCount++
			assert.True(d > 0)
			return nil
		}
		defer func() { sleepFn = sleepContext }()

		l := &recordingListener{}
		h := NewHelper(Options{Stop: StopAfterAttempt(5), Listeners: []Listener{l}})
		retryCount := 0
		err := h.Execute(context.Background(), ActionAccountUpdate, func(context.Context) error {
			assert.Equal(sleepCount, retryCount)
			if retryCount == nRetries {
				return nil
			}
			retryCount++
			return conflict()
		})
		assert.NoError(err)
		assert.Equal(nRetries, sleepCount)
		assert.Len(l.attempts, nRetries+1)
		for _, a := range l.attempts[:nRetries] {
			assert.Equal(ConflictRetry, a.Outcome)
		}
	}

	test(1)
	test(2)
	test(3)
}

func TestRetriesExhausted(t *testing.T) {
	l := &recordingListener{}
	h := NewHelper(Options{Stop: StopAfterAttempt(3), Block: NoSleep, Listeners: []Listener{l}})
	calls := 0
	var last error
	err := h.Execute(context.Background(), ActionAccountUpdate, func(context.Context) error {
		calls++
		last = conflict()
		return last
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, l.exhausted)

	var re *RetriesExhaustedError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 3, re.Attempts)
	assert.Same(t, last, re.Cause)
	assert.ErrorIs(t, err, datas.ErrOptimisticLockFailed)
	assert.Contains(t, err.Error(), "contended or unavailable")
}

func TestNonRetryableErrorReturnedUnwrapped(t *testing.T) {
	boom := errors.New("boom")
	h := NewHelper(Options{Block: NoSleep})
	calls := 0
	err := h.Execute(context.Background(), ActionAccountUpdate, func(context.Context) error {
		calls++
		return boom
	})
	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestExceptionHooks(t *testing.T) {
	transient := errors.New("transient backend error")
	h := NewHelper(Options{Block: NoSleep, Stop: StopAfterAttempt(10), Hooks: []ExceptionHook{hook{retry: transient}}})
	calls := 0
	err := h.Execute(context.Background(), ActionAccountUpdate, func(context.Context) error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	// A veto wins over lock failures.
	h = NewHelper(Options{Block: NoSleep, Hooks: []ExceptionHook{hook{skip: datas.ErrOptimisticLockFailed}}})
	calls = 0
	err = h.Execute(context.Background(), ActionAccountUpdate, func(context.Context) error {
		calls++
		return conflict()
	})
	assert.ErrorIs(t, err, datas.ErrOptimisticLockFailed)
	var re *RetriesExhaustedError
	assert.False(t, errors.As(err, &re))
	assert.Equal(t, 1, calls)
}

func TestWithRetryOn(t *testing.T) {
	busy := errors.New("busy")
	h := NewHelper(Options{Block: NoSleep})
	calls := 0
	err := h.Execute(context.Background(), ActionSequence, func(context.Context) error {
		calls++
		if calls == 1 {
			return busy
		}
		return nil
	}, WithRetryOn(func(err error) bool { return errors.Is(err, busy) }), WithStop(StopAfterAttempt(2)))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestStopAfterDelay(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	defer func() { now = time.Now }()

	h := NewHelper(Options{Block: NoSleep, Stop: StopAfterDelay(3 * time.Second)})
	calls := 0
	err := h.Execute(context.Background(), ActionAccountUpdate, func(context.Context) error {
		calls++
		return conflict()
	})
	var re *RetriesExhaustedError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3*time.Second, re.Elapsed)
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHelper(Options{Block: NoSleep})
	calls := 0
	err := h.Execute(ctx, ActionAccountUpdate, func(context.Context) error {
		calls++
		cancel()
		return conflict()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestStopStrategies(t *testing.T) {
	assert.False(t, StopAfterAttempt(3).ShouldStop(2, 0))
	assert.True(t, StopAfterAttempt(3).ShouldStop(3, 0))
	assert.True(t, StopAfterDelay(time.Second).ShouldStop(1, time.Second))
	s := StopAny(StopAfterAttempt(5), StopAfterDelay(time.Minute))
	assert.False(t, s.ShouldStop(1, time.Second))
	assert.True(t, s.ShouldStop(5, time.Second))
	assert.True(t, s.ShouldStop(1, time.Hour))
}

func TestWaitStrategies(t *testing.T) {
	b := FixedWait(5 * time.Millisecond)()
	assert.Equal(t, 5*time.Millisecond, b.NextBackOff())

	e := ExponentialWait(10*time.Millisecond, 40*time.Millisecond, 2)()
	e.Reset()
	for i := 0; i < 10; i++ {
		d := e.NextBackOff()
		assert.True(t, d > 0)
		// randomization factor is 0.5 by default
		assert.True(t, d <= 60*time.Millisecond)
	}
}

func TestSleepRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep.Block(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep.Block(context.Background(), time.Millisecond))
}
