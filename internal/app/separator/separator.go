// Package separator converts raw byte arrivals on a child's stdout/stderr
// into semantic events, one stateful instance per (action, fd).
package separator

import (
	"fmt"

	appErrors "logwatch/internal/app/errors"
	"logwatch/internal/config"
)

// Sink receives one emitted event string. Called synchronously from Feed.
type Sink func(event string)

// Separator is fed raw bytes as they arrive and emits zero or more events
// through its sink. Implementations never return an error from Feed —
// malformed input is tolerated per the error-handling design (residue is
// simply retained or discarded, never surfaced as a failure).
type Separator interface {
	Feed(data []byte)
}

// New constructs the separator named by method. trim controls whether
// emitted events are stripped of surrounding whitespace.
func New(method string, trim bool, sink Sink) (Separator, error) {
	switch method {
	case config.SeparatorByNewline, "":
		return NewByNewline(trim, sink), nil
	case config.SeparatorByBrackets:
		return NewByBrackets(trim, sink), nil
	default:
		return nil, fmt.Errorf("%w: %s", appErrors.ErrUnknownSeparator, method)
	}
}
