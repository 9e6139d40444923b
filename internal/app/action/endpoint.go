// Package action implements Action Endpoints: one running child process or
// SSH session, its byte-stream producers, and its process-group lifecycle.
package action

import (
	"context"

	"logwatch/internal/app/wire"
)

// EventKind discriminates the tagged events an Endpoint emits on its event
// channel, replacing the ad-hoc completion/data-emit callback fields the
// original source used.
type EventKind int

const (
	// EventDataEmitted carries one event surfaced by the endpoint's separator.
	EventDataEmitted EventKind = iota
	// EventFinished carries the endpoint's terminal exit code.
	EventFinished
)

// Event is the single tagged-event shape an Endpoint pushes to its owner
// (the Action Manager). Only the fields relevant to Kind are populated.
type Event struct {
	Kind EventKind
	Name string
	FD   wire.FD
	Data string
	Code int
}

// Endpoint is the capability set shared by every kind of managed action —
// a sum type modelled as an interface rather than a class hierarchy, per
// the "avoid inheritance" design note. Concrete kinds: Subprocess, SSH.
type Endpoint interface {
	Name() string
	Register() string
	// Run launches the child and streams Event values to events until the
	// endpoint terminates, ending with one EventFinished. It never closes
	// events, which the owner may share between endpoints. Run returns once
	// the child has been started (or launch failed); it does not block for exit.
	Run(ctx context.Context, events chan<- Event) error
	// Send enqueues data for the child's stdin, terminated by a newline,
	// and synthesizes a DataEmitted(fd=stdin) event for anyone watching.
	Send(data []byte)
	// Stop signals the child's entire process group and swallows
	// already-gone errors.
	Stop() error
	IsActive() bool
	Wait()
}
