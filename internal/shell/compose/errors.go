package compose

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrTransferFailed is returned when shipping files to the target fails.
	ErrTransferFailed = errors.New("file transfer failed")

	// ErrRemoteApplyFailed is returned when the remote apply exits non-zero.
	ErrRemoteApplyFailed = errors.New("remote apply failed")

	// ErrRemoteTeardownFailed is returned when the remote teardown exits non-zero.
	ErrRemoteTeardownFailed = errors.New("remote teardown failed")
)

// BackendError wraps compose backend failures with the pipeline step and
// target they concerned. Remote output, when captured, travels inside Err.
type BackendError struct {
	Op     string // Pipeline step (e.g. "TransferArtifact", "RemoteApply")
	Target string
	Err    error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Target, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// joinCause pairs a sentinel with its underlying cause so callers can match
// either with errors.Is.
func joinCause(kind, cause error) error {
	return fmt.Errorf("%w: %w", kind, cause)
}
