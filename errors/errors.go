package errors

import "errors"

// Sentinel errors shared across the pipeline packages.
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrProviderUnavailable indicates an external provider call failed
	// after its retry budget was exhausted
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrToolNotRegistered indicates a plan referenced an unknown tool
	ErrToolNotRegistered = errors.New("tool not registered")

	// ErrNoEvidence indicates retrieval produced no usable passages
	ErrNoEvidence = errors.New("no supporting evidence")
)
