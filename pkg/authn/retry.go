package authn

import (
	"context"
	"fmt"
	"log/slog"
)

// retryWithRecovery runs fn and, when it fails, performs the recovery
// action before trying fn again, at most attempts more times. A failed
// recovery ends the loop immediately; the last failure of fn
// propagates unmodified.
func retryWithRecovery(ctx context.Context, attempts int, fn, reestablish func(context.Context) error) error {
	err := fn(ctx)
	for i := 0; err != nil && i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Debug("re-establishing conversation before retry", "error", err)
		if rerr := reestablish(ctx); rerr != nil {
			return fmt.Errorf("recovery failed: %w", rerr)
		}
		err = fn(ctx)
	}
	return err
}
