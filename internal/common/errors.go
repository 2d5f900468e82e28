package common

import "errors"

// Engine error kinds. Handlers map these to HTTP status codes; services wrap
// them with fmt.Errorf("...: %w", ...) so errors.Is works through the chain.
var (
	// ErrNotFound marks an unknown portfolio or signal id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput marks a rejected candidate or request field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyTerminal marks an acknowledgement on a signal past its terminal
	// state. Callers treat it as a no-op success, not a failure.
	ErrAlreadyTerminal = errors.New("signal already terminal")

	// ErrUpstreamUnavailable marks an oracle or delivery channel failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrClockInconsistency marks a candidate whose computed expiry is not in
	// the future. Such candidates are rejected at admission, never stored.
	ErrClockInconsistency = errors.New("clock inconsistency")
)

// ErrorCode returns the machine-readable code for an engine error kind,
// or "internal" when the error does not match a known kind.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrAlreadyTerminal):
		return "already_terminal"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrClockInconsistency):
		return "clock_inconsistency"
	default:
		return "internal"
	}
}
