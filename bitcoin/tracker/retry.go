// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package tracker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/BoostyLabs/ordinals/bitcoin"
)

// RetryConfig defines configuration for Retry.
type RetryConfig struct {
	// InitialInterval is the first backoff delay, 500ms when zero.
	InitialInterval time.Duration
	// MaxElapsedTime bounds total retrying time, 2 minutes when zero.
	MaxElapsedTime time.Duration
	// MaxRetries bounds the number of re-attempts, unbounded when zero.
	MaxRetries uint64
}

// Retry re-invokes an idempotent operation with exponential backoff while it
// keeps failing with recoverable errors. Non-recoverable errors propagate
// immediately without retry. The operation must be idempotent: each attempt
// is a fresh call, never a resumption of partially built state.
func Retry(ctx context.Context, config RetryConfig, operation func() error) error {
	policy := backoff.NewExponentialBackOff()
	if config.InitialInterval > 0 {
		policy.InitialInterval = config.InitialInterval
	}
	policy.MaxElapsedTime = 2 * time.Minute
	if config.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = config.MaxElapsedTime
	}

	var wrapped backoff.BackOff = backoff.WithContext(policy, ctx)
	if config.MaxRetries > 0 {
		wrapped = backoff.WithMaxRetries(wrapped, config.MaxRetries)
	}

	attempt := 0

	return backoff.Retry(func() error {
		attempt++
		err := operation()
		if err == nil {
			return nil
		}
		if !bitcoin.IsRecoverable(err) {
			return backoff.Permanent(err)
		}

		log.Debugf("attempt %d failed with recoverable error: %v", attempt, err)

		return err
	}, wrapped)
}
