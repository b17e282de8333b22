// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/provider"
)

// retryWithBackoff runs fn until it succeeds, returns a non-retryable
// error, or the attempts run out. The delay doubles after every attempt
// and waits are cancellable through ctx.
func retryWithBackoff(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !provider.IsRetryable(err) {
			return err
		}

		if attempt < attempts-1 {
			logging.Ctx(ctx).Warn().Err(err).
				Int("attempt", attempt+1).
				Int("max_attempts", attempts).
				Dur("delay", delay).
				Msg("Retry attempt")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}
