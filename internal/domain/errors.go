package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates a required collaborator or setting is missing.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotInitialized indicates an operation ran before the engine was ready.
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrDimensionMismatch indicates two vectors of different length were compared.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUpstream indicates a document source or generator call failed.
	ErrUpstream = errors.New("upstream failure")

	// ErrEmptyContent indicates a document without text.
	ErrEmptyContent = errors.New("document content is empty")
)

// UpstreamError records which collaborator call failed.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is reports ErrUpstream as a match so callers need not know the concrete type.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// Upstream wraps err as an UpstreamError. A nil err stays nil.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}
