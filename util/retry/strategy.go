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
	"time"

	"github.com/cenkalti/backoff/v4"
)

// StopStrategy decides, after a failed attempt, whether to give up.
type StopStrategy interface {
	ShouldStop(attempt int, elapsed time.Duration) bool
}

// StopAfterAttempt stops once |n| attempts have been made.
type StopAfterAttempt int

func (s StopAfterAttempt) ShouldStop(attempt int, _ time.Duration) bool {
	return attempt >= int(s)
}

// StopAfterDelay stops once the loop has been running for |d|.
type StopAfterDelay time.Duration

func (s StopAfterDelay) ShouldStop(_ int, elapsed time.Duration) bool {
	return elapsed >= time.Duration(s)
}

type stopAny []StopStrategy

// StopAny stops as soon as any of |strategies| would.
func StopAny(strategies ...StopStrategy) StopStrategy {
	return stopAny(strategies)
}

func (s stopAny) ShouldStop(attempt int, elapsed time.Duration) bool {
	for _, st := range s {
		if st.ShouldStop(attempt, elapsed) {
			return true
		}
	}
	return false
}

// WaitStrategy builds the backoff sequence used for one Execute call.
type WaitStrategy func() backoff.BackOff

// ExponentialWait grows the delay from |initial| by |multiplier| up to |max|,
// with jitter.
func ExponentialWait(initial, max time.Duration, multiplier float64) WaitStrategy {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		b.Multiplier = multiplier
		// the stop strategy bounds the loop
		b.MaxElapsedTime = 0
		return b
	}
}

// FixedWait waits |d| between every attempt.
func FixedWait(d time.Duration) WaitStrategy {
	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(d)
	}
}

// BlockStrategy performs the wait between attempts.
type BlockStrategy interface {
	Block(ctx context.Context, d time.Duration) error
}

type sleepBlock struct{}

func (sleepBlock) Block(ctx context.Context, d time.Duration) error {
	return sleepFn(ctx, d)
}

type noSleep struct{}

func (noSleep) Block(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

var (
	// Sleep waits for the delay or until the context is done.
	Sleep BlockStrategy = sleepBlock{}

	// NoSleep returns immediately. Intended for tests.
	NoSleep BlockStrategy = noSleep{}
)

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
