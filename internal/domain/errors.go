package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound reports that the provider answered but returned nothing usable.
var ErrNotFound = errors.New("no usable place fields in provider response")

// TransportError is a failed exchange with the upstream provider: network
// failure, timeout, non-2xx status, or an undecodable body.
type TransportError struct {
	Transport string
	Code      int
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: status %d: %v", e.Transport, e.Code, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ThrottledError is a TransportError whose status shows the provider is
// rate limiting (429) or blocking (403) this client.
type ThrottledError struct {
	Cause *TransportError
}

func (e *ThrottledError) Error() string {
	return "provider throttled: " + e.Cause.Error()
}

func (e *ThrottledError) Unwrap() error { return e.Cause }

// NewTransportError builds the error for a failed exchange. Throttling
// statuses are wrapped in a ThrottledError; errors.As still finds the
// underlying TransportError.
func NewTransportError(transport string, code int, err error) error {
	te := &TransportError{Transport: transport, Code: code, Err: err}
	if IsThrottleStatus(code) {
		return &ThrottledError{Cause: te}
	}
	return te
}

// IsThrottleStatus reports whether an upstream status asks the client to back off.
func IsThrottleStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusForbidden
}

// IsThrottled reports whether err carries a throttling status.
func IsThrottled(err error) bool {
	var te *ThrottledError
	return errors.As(err, &te)
}

// InternalError is an invariant violation inside the resolver. It is the only
// failure surfaced to callers of Resolve.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }
