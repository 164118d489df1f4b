package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderRejected means the provider did not accept the send. Fatal for a dispatch.
	ErrProviderRejected = errors.New("provider rejected send")
	// ErrInvalidRequest means the request failed validation before any provider call
	ErrInvalidRequest = errors.New("invalid send request")
	// ErrRecordNotFound is returned by record lookups with no match
	ErrRecordNotFound = errors.New("message record not found")
	// ErrCorrelationTimeout means direct correlation exhausted its budget; triggers fallback
	ErrCorrelationTimeout = errors.New("correlation timed out")
	// ErrAttributionAmbiguous means the fallback matched more than one candidate
	ErrAttributionAmbiguous = errors.New("attribution ambiguous")
	// ErrAttributionWriteFailed means the attribution write failed after a successful send
	ErrAttributionWriteFailed = errors.New("attribution write failed")
)

// ProviderError wraps a non-success provider response
type ProviderError struct {
	Status int
	Body   string
	Err    error // Transport error, if any
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider send failed: %v", e.Err)
	}
	return fmt.Sprintf("provider send failed: status %d: %s", e.Status, e.Body)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is matches ErrProviderRejected
func (e *ProviderError) Is(target error) bool { return target == ErrProviderRejected }
