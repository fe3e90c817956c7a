package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Environment failures reported by the location collaborators. A failed
// check aborts start; the caller may retry the whole start later.
var (
	ErrPermissionDenied   = errors.New("probe: location permission denied")
	ErrServiceUnavailable = errors.New("probe: location service unavailable")
)

// CheckFunc is a function that performs a readiness check.
// It returns nil if the check passes, or an error if it fails.
type CheckFunc func(ctx context.Context) error

// Probe represents a single startup check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool // If true, a failure here should prevent recording.
}

// Result holds the outcome of a single probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Run executes a list of probes and returns their results.
// It enforces a timeout for each check if the context doesn't already have one.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))

	for i, p := range probes {
		start := time.Now()

		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.Check(checkCtx)
		cancel()

		results[i] = Result{
			Probe:    p,
			Error:    err,
			Duration: time.Since(start),
		}
	}

	return results
}

// Analyze aggregates the results, logs a summary, and returns a combined
// error if any critical probe failed.
func Analyze(results []Result) error {
	var criticalErrors []error

	slog.Info("Startup Checks Summary")

	for _, r := range results {
		status := "PASS"
		if r.Error != nil {
			status = "FAIL"
		}

		msg := fmt.Sprintf("[%s] %-24s (%v)", status, r.Probe.Name, r.Duration.Round(time.Millisecond))

		if r.Error != nil {
			slog.Error(msg, "error", r.Error)
			if r.Probe.Critical {
				criticalErrors = append(criticalErrors, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
			}
		} else {
			slog.Info(msg)
		}
	}

	if len(criticalErrors) > 0 {
		return errors.Join(criticalErrors...)
	}
	return nil
}

// Permission builds the location-permission probe from a collaborator
// report. A denied grant maps to ErrPermissionDenied.
func Permission(granted func(ctx context.Context) (bool, error)) Probe {
	return Probe{
		Name:     "Location Permission",
		Critical: true,
		Check: func(ctx context.Context) error {
			ok, err := granted(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return ErrPermissionDenied
			}
			return nil
		},
	}
}

// Service builds the location-service probe from a collaborator report.
// A disabled service maps to ErrServiceUnavailable.
func Service(enabled func(ctx context.Context) (bool, error)) Probe {
	return Probe{
		Name:     "Location Service",
		Critical: true,
		Check: func(ctx context.Context) error {
			ok, err := enabled(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return ErrServiceUnavailable
			}
			return nil
		},
	}
}
