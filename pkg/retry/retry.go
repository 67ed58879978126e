/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package retry provides a bounded, fixed-delay retry combinator.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrExhausted is the default terminal error when no Policy.Exhausted is set.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy retries an operation up to MaxAttempts times, sleeping Delay between
// attempts. When the budget runs out the last error is wrapped in Exhausted.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Exhausted   error
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying; Do returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// Do runs op until it succeeds, returns a Permanent error, the context ends,
// or MaxAttempts is reached.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		lastErr   error
		permanent bool
		tries     int
	)

	operation := func() (struct{}, error) {
		tries++

		err := op()
		if err == nil {
			return struct{}{}, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			permanent = true
			lastErr = perm.err

			return struct{}{}, backoff.Permanent(perm.err)
		}

		lastErr = err

		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if permanent {
		return lastErr
	}

	terminal := p.Exhausted
	if terminal == nil {
		terminal = ErrExhausted
	}

	return fmt.Errorf("%w after %d attempts: %w", terminal, tries, lastErr)
}
