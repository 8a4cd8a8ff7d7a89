package discovery

import (
	"errors"
	"fmt"
)

// Sentinel errors for peripheral communication.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, discovery.ErrUpstreamUnavailable) {
//	    // peripheral unreachable, timed out or refused the call
//	}
var (
	// ErrUpstreamUnavailable indicates a peripheral could not be reached or
	// did not answer with a success status.
	ErrUpstreamUnavailable = errors.New("discovery: upstream unavailable")

	// ErrUpstreamTimeout indicates a peripheral call exceeded its deadline.
	// It also matches ErrUpstreamUnavailable.
	ErrUpstreamTimeout = fmt.Errorf("%w: timeout", ErrUpstreamUnavailable)

	// ErrUpstreamStatus indicates a peripheral answered with a non-success status.
	// It also matches ErrUpstreamUnavailable.
	ErrUpstreamStatus = fmt.Errorf("%w: unexpected status", ErrUpstreamUnavailable)

	// ErrInvalidInfo indicates /device/info answered 200 with an unusable body.
	ErrInvalidInfo = errors.New("discovery: invalid device info")
)
