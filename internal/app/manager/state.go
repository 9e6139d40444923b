package manager

import (
	"context"

	"github.com/looplab/fsm"
)

// actionFSM wraps *fsm.FSM with the two operations the manager actually
// needs, swallowing duplicate/invalid transitions so callers never have to
// type-switch fsm's error types themselves.
type actionFSM struct {
	f *fsm.FSM
}

func newFSM() *actionFSM {
	return &actionFSM{f: newActionFSM()}
}

func (a *actionFSM) current() string {
	return a.f.Current()
}

func (a *actionFSM) fire(event string) error {
	return fireIgnoringInvalid(a.f, event)
}

// Action states, exactly the five named in the action lifecycle.
const (
	StateAwaiting           = "awaiting"
	StateRunning            = "running"
	StateFinished           = "finished"
	StateFinishedWithError  = "finished-with-error"
	StateTerminating        = "terminating"
)

// FSM events driving the per-action state machine.
const (
	eventPreconditionMet  = "precondition-met"
	eventExitOK           = "exit-ok"
	eventExitError        = "exit-error"
	eventStopAwaiting     = "stop-awaiting"
	eventStopRunning      = "stop-running"
	eventExitAfterStopOK  = "exit-after-stop-ok"
	eventExitAfterStopErr = "exit-after-stop-error"
)

// newActionFSM builds the state machine for one action:
//
//	awaiting  --precondition-met-->  running
//	running   --exit-ok-->           finished
//	running   --exit-error-->        finished-with-error
//	running   --stop-running-->      terminating
//	terminating --exit-after-stop-ok/err--> finished/finished-with-error
//	awaiting  --stop-awaiting-->      finished
func newActionFSM() *fsm.FSM {
	return fsm.NewFSM(
		StateAwaiting,
		fsm.Events{
			{Name: eventPreconditionMet, Src: []string{StateAwaiting}, Dst: StateRunning},
			{Name: eventExitOK, Src: []string{StateRunning}, Dst: StateFinished},
			{Name: eventExitError, Src: []string{StateRunning}, Dst: StateFinishedWithError},
			{Name: eventStopRunning, Src: []string{StateRunning}, Dst: StateTerminating},
			{Name: eventExitAfterStopOK, Src: []string{StateTerminating}, Dst: StateFinished},
			{Name: eventExitAfterStopErr, Src: []string{StateTerminating}, Dst: StateFinishedWithError},
			{Name: eventStopAwaiting, Src: []string{StateAwaiting}, Dst: StateFinished},
		},
		fsm.Callbacks{},
	)
}

func isTerminal(state string) bool {
	return state == StateFinished || state == StateFinishedWithError
}

// fireIgnoringInvalid drives event on f, swallowing InvalidEventError and
// NoTransitionError — callers fire events without checking first whether
// the transition is allowed, and the swallow keeps a stray duplicate event
// from surfacing as an error in the manager loop.
func fireIgnoringInvalid(f *fsm.FSM, event string) error {
	err := f.Event(context.Background(), event)

	if _, ok := err.(fsm.InvalidEventError); ok {
		return nil
	}

	if _, ok := err.(fsm.NoTransitionError); ok {
		return nil
	}

	return err
}
