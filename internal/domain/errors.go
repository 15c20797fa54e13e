package domain

import "errors"

// Error taxonomy sentinels (spec.md §7). Concrete errors wrap one of these
// with fmt.Errorf("...: %w", Err...) so callers can errors.Is against the
// class without parsing messages.
var (
	// ErrTransport covers connect/recv/write failures — terminates the session.
	ErrTransport = errors.New("transport error")

	// ErrProtocolFatal is a server critical_error — terminates the session.
	ErrProtocolFatal = errors.New("protocol fatal error")

	// ErrStudy is a server study_error — surfaced as a StudyErrorEvent,
	// session survives. No per-study errored state is recorded.
	ErrStudy = errors.New("study error")

	// ErrDecodeLocal is malformed JSON in a frame or in ns.d — skipped
	// without a log line, never propagated past the router or interpreter.
	ErrDecodeLocal = errors.New("decode error")

	// ErrMetadataHTTP is a non-success metadata HTTP response — raised to
	// the caller, session unaffected.
	ErrMetadataHTTP = errors.New("metadata request failed")

	// ErrInvalidTransition is returned when the Session Controller is asked
	// to run an operation its current state does not permit.
	ErrInvalidTransition = errors.New("invalid session state transition")
)
