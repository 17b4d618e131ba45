package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

func TestErrorTypeLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: "unknown"},
		{err: errStale, want: "transient"},
		{err: fmt.Errorf("read: %w", errStale), want: "transient"},
		{err: ErrNotFound{Selector: ".price"}, want: "not_found"},
		{err: ErrTimeout{Err: errors.New("slow")}, want: "timeout"},
		{err: ErrFatal{Stage: "navigate", Err: errStale}, want: "fatal"},
		{err: context.Canceled, want: "canceled"},
		{err: errors.New("boom"), want: "other"},
	}

	for _, tt := range tests {
		if got := errorTypeLabel(tt.err); got != tt.want {
			t.Fatalf("errorTypeLabel(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestFatalHidesTransientCause(t *testing.T) {
	err := ErrFatal{Stage: "activate load more", Err: errStale}
	if IsTransient(err) {
		t.Fatalf("fatal error reported as transient")
	}
	if !errors.Is(err, errStale) {
		t.Fatalf("cause should stay reachable through Unwrap")
	}
	if !strings.HasPrefix(err.Error(), "fatal: activate load more: ") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestFailureClassification(t *testing.T) {
	missing := fmt.Errorf("card: %w", ErrNotFound{Selector: ".price"})
	if failureKind(missing) != models.MissingElement {
		t.Fatalf("missing element misclassified")
	}
	if !strings.HasPrefix(failureReason(missing), "Missing element: ") {
		t.Fatalf("reason = %q", failureReason(missing))
	}

	other := errors.New("parse reviews: invalid syntax")
	if failureKind(other) != models.Unexpected || failureReason(other) != other.Error() {
		t.Fatalf("unexpected failure misclassified")
	}
}
