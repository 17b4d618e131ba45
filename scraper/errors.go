package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// ErrTransient indicates a stale node or a driver communication failure.
// These are the only faults the extractor and activation retry.
type ErrTransient struct {
	Err error
}

func (e ErrTransient) Error() string {
	return fmt.Errorf("transient: %w", e.Err).Error()
}

func (e ErrTransient) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a selector matched nothing.
type ErrNotFound struct {
	Selector string
	Err      error
}

func (e ErrNotFound) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("not_found: no element matches %q", e.Selector)
	}
	return fmt.Errorf("not_found: %q: %w", e.Selector, e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates a bounded wait expired.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrFatal aborts a run. Stage names the step that failed.
type ErrFatal struct {
	Stage string
	Err   error
}

func (e ErrFatal) Error() string {
	return fmt.Errorf("fatal: %s: %w", e.Stage, e.Err).Error()
}

func (e ErrFatal) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable fault. A transient cause
// wrapped in ErrFatal is not retryable.
func IsTransient(err error) bool {
	var fatal ErrFatal
	if errors.As(err, &fatal) {
		return false
	}
	var transient ErrTransient
	return errors.As(err, &transient)
}

// IsTimeout reports whether err came from an expired wait.
func IsTimeout(err error) bool {
	var timeout ErrTimeout
	return errors.As(err, &timeout)
}

// IsNotFound reports whether err came from a selector with no match.
func IsNotFound(err error) bool {
	var notFound ErrNotFound
	return errors.As(err, &notFound)
}

func retryNavigation(err error) bool {
	return IsTransient(err) || IsTimeout(err)
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var fatal ErrFatal
	if errors.As(err, &fatal) {
		return "fatal"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	if IsTransient(err) {
		return "transient"
	}
	if IsNotFound(err) {
		return "not_found"
	}
	if IsTimeout(err) {
		return "timeout"
	}
	return "other"
}

func failureKind(err error) models.FailureKind {
	if IsNotFound(err) {
		return models.MissingElement
	}
	return models.Unexpected
}

func failureReason(err error) string {
	if IsNotFound(err) {
		return "Missing element: " + err.Error()
	}
	return err.Error()
}
