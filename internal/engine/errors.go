package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotRun marks a section for which no probe result exists.
var ErrNotRun = errors.New("probe did not run")

// ProbeTimeoutError reports a probe that exceeded its time budget.
type ProbeTimeoutError struct {
	Probe   Section
	Timeout time.Duration
}

func (e *ProbeTimeoutError) Error() string {
	return fmt.Sprintf("%s probe timed out after %s", e.Probe, e.Timeout)
}

// ProbeNetworkError wraps a network failure inside a probe.
type ProbeNetworkError struct {
	Probe Section
	Err   error
}

func (e *ProbeNetworkError) Error() string {
	return fmt.Sprintf("%s probe: %s", e.Probe, e.Err)
}

func (e *ProbeNetworkError) Unwrap() error { return e.Err }

// PartialDataError reports a probe that obtained some but not all of its
// data. The PartialReport lines hold what was obtained.
type PartialDataError struct {
	Missing string
	Err     error
}

func (e *PartialDataError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("partial data: %s unavailable", e.Missing)
	}
	return fmt.Sprintf("partial data: %s unavailable: %s", e.Missing, e.Err)
}

func (e *PartialDataError) Unwrap() error { return e.Err }

// classify maps a raw probe error onto the error taxonomy.
func classify(section Section, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	var (
		te *ProbeTimeoutError
		ne *ProbeNetworkError
		pe *PartialDataError
	)
	switch {
	case errors.As(err, &te), errors.As(err, &ne), errors.As(err, &pe):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &ProbeTimeoutError{Probe: section, Timeout: timeout}
	default:
		return &ProbeNetworkError{Probe: section, Err: err}
	}
}

// Diagnostic returns the single report line shown for a failed section.
func Diagnostic(err error) string {
	var (
		te *ProbeTimeoutError
		ne *ProbeNetworkError
		pe *PartialDataError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotRun):
		return "⚠️ No data (probe did not run)"
	case errors.As(err, &te):
		return fmt.Sprintf("⏱️ Timed out after %s", te.Timeout)
	case errors.As(err, &pe):
		return "⚠️ " + capitalize(pe.Error())
	case errors.As(err, &ne):
		return "❌ Network error: " + ne.Err.Error()
	default:
		return "❌ " + err.Error()
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-32) + s[1:]
	}
	return s
}
