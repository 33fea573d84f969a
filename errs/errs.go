// Package errs defines the error taxonomy shared by the tracker, the trial
// executor and the suite driver.
//
// Trial failures and timeouts are fatal to the scenario that produced them.
// Missing inputs skip the scenario. Unavailable memory instrumentation is
// never fatal: it degrades to zeroed memory fields.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrMeasurementUnavailable is returned by memory readers on platforms
	// without a usable resident-memory source.
	ErrMeasurementUnavailable = errors.New("memory measurement unavailable")

	// ErrEmptySampleSet is returned when statistics are requested over zero
	// trials.
	ErrEmptySampleSet = errors.New("empty sample set")

	// ErrTrialFailure marks a trial whose worker reported an error, crashed,
	// or produced unreadable output.
	ErrTrialFailure = errors.New("trial failed")

	// ErrTrialTimeout marks a trial whose worker did not answer in time.
	ErrTrialTimeout = errors.New("trial timed out")

	// ErrMissingInput marks a scenario whose data artifact does not exist.
	ErrMissingInput = errors.New("missing input file")

	// ErrUnknownScenario is returned by a worker asked to run an operation
	// it does not know.
	ErrUnknownScenario = errors.New("unknown scenario")

	// ErrUnknownVariant is returned for variant names with no access strategy.
	ErrUnknownVariant = errors.New("unknown variant")

	// ErrReservedKey is returned when a record's extra values collide with a
	// fixed field of the wire format.
	ErrReservedKey = errors.New("reserved result key")
)

// IsSkip reports whether err means "not run" rather than "ran and broke".
func IsSkip(err error) bool {
	return errors.Is(err, ErrMissingInput)
}

// IsTrialError reports whether err aborted a scenario from inside a trial.
func IsTrialError(err error) bool {
	return errors.Is(err, ErrTrialFailure) || errors.Is(err, ErrTrialTimeout)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// NewMissingInput creates a missing-input error naming the file.
func NewMissingInput(path string) error {
	return fmt.Errorf("%s: %w", path, ErrMissingInput)
}
