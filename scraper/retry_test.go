package scraper

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordedSleeps struct {
	sleeps []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.sleeps = append(r.sleeps, d)
	return nil
}

func TestRetrierBackoffDoubles(t *testing.T) {
	rec := &recordedSleeps{}
	var events []RetryEvent
	r := NewRetrier(RetryPolicy{MaxAttempts: 4, Backoff: 100 * time.Millisecond},
		RetryObserverFunc(func(ev RetryEvent) { events = append(events, ev) }),
		WithSleep(rec.sleep),
		WithJitter(func(base time.Duration) time.Duration { return base / 20 }),
	)

	calls := 0
	err := r.Run(context.Background(), "op", func() error {
		calls++
		if calls < 4 {
			return errStale
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []time.Duration{105 * time.Millisecond, 210 * time.Millisecond, 420 * time.Millisecond}
	if len(rec.sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", rec.sleeps, want)
	}
	for i := range want {
		if rec.sleeps[i] != want[i] {
			t.Fatalf("sleep %d = %s, want %s", i, rec.sleeps[i], want[i])
		}
	}
	if r.TotalRetries() != 3 || len(events) != 3 {
		t.Fatalf("retries = %d events = %d, want 3", r.TotalRetries(), len(events))
	}
	for i, ev := range events {
		if ev.Attempt != i+1 || ev.Exhausted || ev.Kind != "transient" || ev.Op != "op" {
			t.Fatalf("event %d = %+v", i, ev)
		}
	}
}

func TestRetrierSleepStaysWithinJitterBounds(t *testing.T) {
	rec := &recordedSleeps{}
	r := NewRetrier(RetryPolicy{MaxAttempts: 3, Backoff: time.Second}, nil, WithSleep(rec.sleep))

	_ = r.Run(context.Background(), "op", func() error { return errStale })

	for i, d := range rec.sleeps {
		base := time.Second << i
		if d < base || d >= base+base/10 {
			t.Fatalf("sleep %d = %s, want within [%s, %s)", i, d, base, base+base/10)
		}
	}
}

func TestRetrierExhaustionReturnsLastError(t *testing.T) {
	var last RetryEvent
	r := NewRetrier(RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond},
		RetryObserverFunc(func(ev RetryEvent) { last = ev }),
		WithSleep(noSleep),
	)

	calls := 0
	wantErr := ErrTransient{Err: errors.New("third")}
	err := r.Run(context.Background(), "activate", func() error {
		calls++
		if calls == 3 {
			return wantErr
		}
		return errStale
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want the final error", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if !last.Exhausted || last.Attempt != 3 || last.Sleep != 0 {
		t.Fatalf("last event = %+v, want exhausted with no sleep", last)
	}
	if r.TotalRetries() != 2 {
		t.Fatalf("retries = %d, want 2", r.TotalRetries())
	}
}

func TestRetrierDoesNotRetryPermanentErrors(t *testing.T) {
	var events []RetryEvent
	r := NewRetrier(RetryPolicy{MaxAttempts: 5, Backoff: time.Millisecond},
		RetryObserverFunc(func(ev RetryEvent) { events = append(events, ev) }),
		WithSleep(noSleep),
	)
	permanent := ErrNotFound{Selector: ".price"}

	calls := 0
	err := r.Run(context.Background(), "op", func() error {
		calls++
		return permanent
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want one for the single attempt", len(events))
	}
	if ev := events[0]; !ev.Permanent || ev.Exhausted || ev.Sleep != 0 || ev.Attempt != 1 || ev.Kind != "not_found" {
		t.Fatalf("event = %+v, want a permanent failure with no sleep", ev)
	}
	if r.TotalRetries() != 0 {
		t.Fatalf("retries = %d, want 0", r.TotalRetries())
	}
}

func TestRetrierCustomPolicy(t *testing.T) {
	r := NewRetrier(RetryPolicy{MaxAttempts: 2, Backoff: time.Millisecond}, nil, WithSleep(noSleep))
	nav := r.WithPolicy(RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond, Retryable: retryNavigation})

	calls := 0
	err := nav.Run(context.Background(), "navigate", func() error {
		calls++
		if calls < 3 {
			return ErrTimeout{Err: errors.New("page did not load")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if nav.TotalRetries() != 2 || r.TotalRetries() != 0 {
		t.Fatalf("retries nav=%d base=%d", nav.TotalRetries(), r.TotalRetries())
	}
}

func TestRetrierStopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetrier(RetryPolicy{MaxAttempts: 5, Backoff: time.Hour}, nil, WithJitter(func(time.Duration) time.Duration { return 0 }))

	calls := 0
	err := r.Run(ctx, "op", func() error {
		calls++
		cancel()
		return errStale
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !IsTransient(err) {
		t.Fatalf("interrupted error should still carry the last fault")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoReturnsValue(t *testing.T) {
	r := NewRetrier(RetryPolicy{MaxAttempts: 2}, nil, WithSleep(noSleep))
	calls := 0
	v, err := Do(context.Background(), r, "op", func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errStale
		}
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("Do = %d, %v", v, err)
	}
}

func TestRandomJitter(t *testing.T) {
	if got := randomJitter(0); got != 0 {
		t.Fatalf("jitter(0) = %s", got)
	}
	base := 10 * time.Second
	for range 100 {
		if j := randomJitter(base); j < 0 || j >= base/10 {
			t.Fatalf("jitter = %s, want within [0, %s)", j, base/10)
		}
	}
}
