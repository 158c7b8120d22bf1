// Copyright 2025 The Mealdex Authors
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

// Package retry provides a small reusable retry policy with bounded
// exponential backoff and jitter, parameterized per capability rather than
// hand-rolled at each call site.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// ErrInvalidMaxAttempts indicates a policy with MaxAttempts < 1.
var ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")

// Policy describes the retry behavior for one capability.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      float64 // fraction of the delay randomized, 0 disables
}

// DefaultPolicy matches the provider-call defaults: up to 3 attempts with
// a 500ms base delay and 20% jitter.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Jitter: 0.2}
}

// Do runs operation until it succeeds, exhausts MaxAttempts, or retryable
// reports the failure as non-retryable. The delay doubles after each failed
// attempt. Returns the error from the last attempt.
func (p Policy) Do(ctx context.Context, operation func() error, retryable func(error) bool) error {
	if p.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}

		slog.Debug("operation failed, will retry",
			"attempt", attempt, "maxAttempts", p.MaxAttempts, "error", lastErr)

		if attempt == p.MaxAttempts {
			break
		}

		// Exponential backoff: BaseDelay * 2^(attempt-1)
		delay := p.BaseDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
		}
		if p.Jitter > 0 {
			spread := float64(delay) * p.Jitter
			delay += time.Duration((rand.Float64()*2 - 1) * spread)
			if delay < 0 {
				delay = 0
			}
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
