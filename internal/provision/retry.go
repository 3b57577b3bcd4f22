// SPDX-License-Identifier: MIT
package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/streamforge/provisiond/internal/log"
	"github.com/streamforge/provisiond/internal/metrics"
)

// retryBaseDelay is the envelope's first backoff step. Delays grow
// quadratically (attempt² × base), so a budget of 3 retries waits
// 0.5s, 2s, 4.5s — bounded and strictly non-decreasing.
const retryBaseDelay = 500 * time.Millisecond

// withRetry runs fn under the bounded backoff envelope: one initial attempt
// plus up to maxRetries retried attempts. Context cancellation aborts the
// envelope between attempts.
func withRetry(ctx context.Context, maxRetries int, classification string, fn func() error) error {
	logger := log.WithComponentFromContext(ctx, "provisioner")

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * retryBaseDelay
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			metrics.RecordEngineRetry(classification)
			logger.Warn().
				Int(log.FieldAttempt, attempt).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("retrying engine call")
		}

		if err := fn(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("engine call failed after %d retries: %w", maxRetries, lastErr)
}
