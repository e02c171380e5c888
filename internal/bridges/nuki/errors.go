package nuki

import "errors"

// Domain errors for the Nuki bridge client.
var (
	// ErrUnreachable is returned when the bridge cannot be contacted.
	ErrUnreachable = errors.New("nuki: bridge unreachable")

	// ErrTimeout is returned when the bridge does not answer in time.
	ErrTimeout = errors.New("nuki: bridge request timed out")

	// ErrHTTPStatus is returned for non-2xx responses.
	ErrHTTPStatus = errors.New("nuki: bridge returned an error status")

	// ErrBadResponse is returned when the response body is not valid JSON.
	ErrBadResponse = errors.New("nuki: malformed bridge response")

	// ErrInvalidConfig is returned by New for unusable settings.
	ErrInvalidConfig = errors.New("nuki: invalid configuration")
)
