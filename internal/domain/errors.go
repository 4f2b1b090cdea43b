package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigurationMissing signals a required connection or model setting absent at startup.
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrUpstreamUnavailable signals an unreachable or failing upstream dependency.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrMalformedResponse signals a successful upstream call with an unrecognized payload shape.
	ErrMalformedResponse = errors.New("malformed upstream response")
	// ErrGenerationFailed signals a completion failure after evidence was already retrieved.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrInvalidRequest signals a client request that fails validation.
	ErrInvalidRequest = errors.New("invalid request")
)

// UpstreamStatusError wraps ErrUpstreamUnavailable with the failing service and HTTP status.
type UpstreamStatusError struct {
	Service string
	Status  int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d", ErrUpstreamUnavailable.Error(), e.Service, e.Status)
}

func (e *UpstreamStatusError) Unwrap() error { return ErrUpstreamUnavailable }

// NewUpstreamStatus creates an upstream status error.
func NewUpstreamStatus(service string, status int) error {
	return &UpstreamStatusError{Service: service, Status: status}
}
