package port

import (
	"errors"
	"fmt"
)

// Sentinel errors used across ports. Adapters wrap these with %w so callers
// can classify failures with errors.Is while keeping the diagnostic detail.
var (
	// Mirror manager.
	ErrMirrorRootMissing = errors.New("mirror root directory does not exist")
	ErrCloneFailed       = errors.New("mirror clone failed")
	ErrFetchFailed       = errors.New("mirror fetch failed")
	ErrMirrorTimeout     = errors.New("mirror operation timed out")

	// Change extractor.
	ErrMalformedPayload = errors.New("malformed event payload")

	// Delivery client.
	ErrConnectFailed   = errors.New("could not connect to coordinator")
	ErrAuthRejected    = errors.New("coordinator rejected credentials")
	ErrRemoteRejected  = errors.New("coordinator rejected change")
	ErrConnectionLost  = errors.New("coordinator connection lost")
	ErrDeliveryTimeout = errors.New("delivery timed out")
)

// RemoteRejectionError identifies the first record the coordinator refused.
// Records after it are never transmitted.
type RemoteRejectionError struct {
	Revision string
	Detail   string
}

func (e *RemoteRejectionError) Error() string {
	return fmt.Sprintf("coordinator rejected change %s: %s", e.Revision, e.Detail)
}

func (e *RemoteRejectionError) Unwrap() error {
	return ErrRemoteRejected
}
