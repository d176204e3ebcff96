package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input errors (fatal for the whole channel/period run)
	ErrMissingInput   = errors.New("required input missing")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrUnknownSample  = errors.New("unrecognized sample")
	ErrTreeNotFound   = errors.New("no et_tree or mt_tree found")

	// Histogram errors
	ErrInvalidBinning  = errors.New("invalid binning")
	ErrBinningMismatch = errors.New("histograms have different binning")
	ErrFrozen          = errors.New("histogram already finalized")

	// Lookup errors
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)
	ErrOutOfRange  = errors.New("value outside histogram range")
)

// Error constructors with context
func NewMissingInputError(group, sample, path string) error {
	return fmt.Errorf("%w: sample %s (group %s) not found at %s", ErrMissingInput, sample, group, path)
}

func NewSchemaMismatchError(sample string, reason string) error {
	return fmt.Errorf("%w in sample %s: %s", ErrSchemaMismatch, sample, reason)
}

func NewUnknownSampleError(sample string) error {
	return fmt.Errorf("%w: %q is not mapped to any composition group", ErrUnknownSample, sample)
}

func NewInvalidBinningError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidBinning, reason)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInputError reports whether err aborts a run before anything is persisted.
func IsInputError(err error) bool {
	return errors.Is(err, ErrMissingInput) ||
		errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrUnknownSample) ||
		errors.Is(err, ErrTreeNotFound)
}
