package scraper

import (
	"context"
	"fmt"
	"time"
)

// waitUntil polls cond every interval until it reports true or timeout
// elapses. Transient errors from cond are swallowed and polling continues.
func waitUntil(ctx context.Context, timeout, interval time.Duration, cond func() (bool, error)) error {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)

	for {
		ok, err := cond()
		switch {
		case err == nil && ok:
			return nil
		case err != nil && !IsTransient(err):
			return err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if err != nil {
				return ErrTimeout{Err: fmt.Errorf("condition not met within %s: %w", timeout, err)}
			}
			return ErrTimeout{Err: fmt.Errorf("condition not met within %s", timeout)}
		}
		if err := sleepContext(ctx, min(interval, remaining)); err != nil {
			return err
		}
	}
}
