package image

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrBuildFailed is returned when the docker build exits non-zero.
	ErrBuildFailed = errors.New("image build failed")

	// ErrSaveFailed is returned when exporting the image to an archive fails.
	ErrSaveFailed = errors.New("image save failed")

	// ErrConnectionFailed is returned when the Docker daemon is unreachable.
	ErrConnectionFailed = errors.New("docker connection failed")
)

// ProviderError wraps image provider failures with the operation and image
// reference they concerned.
type ProviderError struct {
	Op      string // Operation that failed (e.g. "Build", "Save")
	Ref     string // Image reference if applicable
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Ref, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError.
func NewProviderError(op, ref, message string, err error) *ProviderError {
	return &ProviderError{
		Op:      op,
		Ref:     ref,
		Message: message,
		Err:     err,
	}
}
