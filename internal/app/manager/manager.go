// Package manager implements the Action Manager: it owns every configured
// action's lifecycle state machine, starts actions once their preconditions
// are satisfied, routes emitted bytes to a Broadcaster, and answers control
// requests (stdin injection, stop-all) dispatched from the Service Manager.
package manager

import (
	"context"
	"fmt"
	"time"

	"logwatch/internal/app/action"
	appErrors "logwatch/internal/app/errors"
	"logwatch/internal/app/wire"
	"logwatch/internal/config"
	"logwatch/internal/config/logger"
)

// Broadcaster is the subset of the Service Manager the Action Manager needs:
// turning a raw emitted event or a keepalive snapshot into a wire record and
// fanning it out. Defined here (not in the service package) so manager does
// not import service — service implements this interface instead.
type Broadcaster interface {
	EmitData(endpointName string, fd wire.FD, data string)
	EmitKeepalive(actions map[string]wire.ActionStatus)
}

type actionRecord struct {
	name          string
	register      string
	endpoint      action.Endpoint
	preconditions []string
	fsm           *actionFSM
}

// Manager owns the full action registry and runs its scheduling loop on a
// single goroutine — Run's select loop is the only place that mutates
// action state, so no locking is needed around it. registerIndex is built
// once at construction and never mutated afterwards, so SendStdin may be
// called concurrently from the bus's connection goroutines.
type Manager struct {
	log         logger.Logger
	broadcaster Broadcaster
	stayActive  bool

	order         []string
	actions       map[string]*actionRecord
	registerIndex map[string]action.Endpoint

	events  chan action.Event
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds the action registry from cfg, in declaration order, but does
// not start anything — actions launch from Run once their preconditions
// (if any) are met.
func New(cfg *config.Config, broadcaster Broadcaster, log logger.Logger) (*Manager, error) {
	m := &Manager{
		log:           log,
		broadcaster:   broadcaster,
		stayActive:    cfg.Server.StayActive,
		actions:       make(map[string]*actionRecord),
		registerIndex: make(map[string]action.Endpoint),
		events:        make(chan action.Event, 256),
		stopCh:        make(chan struct{}, 1),
		doneCh:        make(chan struct{}),
	}

	all := append(append([]config.EndpointConfig{}, cfg.Endpoints...), cfg.Actions...)

	for _, ec := range all {
		ep, err := buildEndpoint(ec, log)
		if err != nil {
			return nil, err
		}

		rec := &actionRecord{
			name:     ec.Name,
			register: ec.Register,
			endpoint: ep,
			fsm:      newFSM(),
		}

		for _, await := range ec.Await {
			rec.preconditions = append(rec.preconditions, await.Completed)
		}

		m.actions[ec.Name] = rec
		m.order = append(m.order, ec.Name)

		if ec.Register != "" {
			m.registerIndex[ec.Register] = ep
		}
	}

	return m, nil
}

func buildEndpoint(ec config.EndpointConfig, log logger.Logger) (action.Endpoint, error) {
	sepMethod := config.SeparatorByNewline
	sepTrim := true

	if ec.EventSeparation != nil {
		sepMethod = ec.EventSeparation.Method
		sepTrim = ec.EventSeparation.Trim
	}

	switch ec.Type {
	case config.KindSSH:
		if ec.SSH == nil {
			return nil, fmt.Errorf("%w: %s has type ssh but no ssh block", appErrors.ErrConfigInvalid, ec.Name)
		}

		return action.NewSSH(ec.Name, ec.Register, ec.Command, *ec.SSH, sepMethod, sepTrim, log), nil
	case config.KindSubprocess, "":
		return action.NewSubprocess(ec.Name, ec.Register, ec.Command, sepMethod, sepTrim, log), nil
	default:
		return nil, fmt.Errorf("%w: %s has unknown type %q", appErrors.ErrConfigInvalid, ec.Name, ec.Type)
	}
}

// SetBroadcaster wires the Service Manager in after construction — manager
// and service are mutually referential, so one side is always built first
// with this left unset.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.broadcaster = b
}

// Done reports completion: closed once every action has reached a terminal
// state, whether or not the server is configured to stay active.
func (m *Manager) Done() <-chan struct{} {
	return m.doneCh
}

// SendStdin resolves register to an endpoint and enqueues data on its
// stdin. Safe for concurrent use.
func (m *Manager) SendStdin(register string, data string) error {
	ep, ok := m.registerIndex[register]
	if !ok {
		return fmt.Errorf("%w: %s", appErrors.ErrUnknownRegister, register)
	}

	if !ep.IsActive() {
		return fmt.Errorf("%w: %s", appErrors.ErrEndpointNotActive, register)
	}

	ep.Send([]byte(data))

	return nil
}

// StopAll requests an orderly shutdown of every action; the actual state
// transitions happen on Run's goroutine once it observes the signal.
func (m *Manager) StopAll() {
	select {
	case m.stopCh <- struct{}{}:
	default:
	}
}

// Run drives the scheduling loop until ctx is cancelled or every action has
// reached a terminal state (and StayActive is false).
func (m *Manager) Run(ctx context.Context) error {
	tick := time.NewTicker(config.ManagerTickInterval)
	defer tick.Stop()

	keepalive := time.NewTicker(config.KeepaliveInterval)
	defer keepalive.Stop()

	m.tick(ctx)

	if m.checkDone() && !m.stayActive {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-m.events:
			m.handleEvent(ev)

			if m.checkDone() && !m.stayActive {
				return nil
			}

		case <-tick.C:
			m.tick(ctx)

			if m.checkDone() && !m.stayActive {
				return nil
			}

		case <-keepalive.C:
			m.emitKeepalive()

		case <-m.stopCh:
			m.stopAll()

			if m.checkDone() && !m.stayActive {
				return nil
			}
		}
	}
}

func (m *Manager) tick(ctx context.Context) {
	for _, name := range m.order {
		rec := m.actions[name]
		if rec.fsm.current() != StateAwaiting {
			continue
		}

		if !m.preconditionsMet(rec) {
			continue
		}

		if err := rec.fsm.fire(eventPreconditionMet); err != nil {
			m.log.Error().Str("action", name).Err(err).Msg("precondition transition failed")
			continue
		}

		if err := rec.endpoint.Run(ctx, m.events); err != nil {
			m.log.Error().Str("action", name).Err(err).Msg("failed to launch action")

			if fireErr := rec.fsm.fire(eventExitError); fireErr != nil {
				m.log.Error().Str("action", name).Err(fireErr).Msg("state transition failed")
			}

			continue
		}

		m.log.Info().Str("action", name).Msg("action launched")
	}
}

// preconditionsMet requires every AWAIT_COMPLETION dependency to have
// exited clean. A dependency that finished with an error never satisfies
// a precondition — it blocks the dependent action forever, it does not
// merely delay it.
func (m *Manager) preconditionsMet(rec *actionRecord) bool {
	for _, dep := range rec.preconditions {
		depRec, ok := m.actions[dep]
		if !ok || depRec.fsm.current() != StateFinished {
			return false
		}
	}

	return true
}

func (m *Manager) handleEvent(ev action.Event) {
	rec, ok := m.actions[ev.Name]
	if !ok {
		return
	}

	switch ev.Kind {
	case action.EventDataEmitted:
		m.broadcaster.EmitData(ev.Name, ev.FD, ev.Data)

	case action.EventFinished:
		var event string

		switch rec.fsm.current() {
		case StateRunning:
			if ev.Code == 0 {
				event = eventExitOK
			} else {
				event = eventExitError
			}
		case StateTerminating:
			if ev.Code == 0 {
				event = eventExitAfterStopOK
			} else {
				event = eventExitAfterStopErr
			}
		default:
			return
		}

		if err := rec.fsm.fire(event); err != nil {
			m.log.Error().Str("action", ev.Name).Err(err).Msg("state transition failed")
		}

		m.log.Info().Str("action", ev.Name).Int("code", ev.Code).Str("state", rec.fsm.current()).Msg("action finished")
	}
}

func (m *Manager) stopAll() {
	for name, rec := range m.actions {
		switch rec.fsm.current() {
		case StateAwaiting:
			if err := rec.fsm.fire(eventStopAwaiting); err != nil {
				m.log.Error().Str("action", name).Err(err).Msg("state transition failed")
			}

		case StateRunning:
			if err := rec.fsm.fire(eventStopRunning); err != nil {
				m.log.Error().Str("action", name).Err(err).Msg("state transition failed")
				continue
			}

			go func(ep action.Endpoint, name string) {
				if err := ep.Stop(); err != nil {
					m.log.Warn().Str("action", name).Err(err).Msg("stop signal failed")
				}
			}(rec.endpoint, name)
		}
	}
}

func (m *Manager) emitKeepalive() {
	statuses := make(map[string]wire.ActionStatus, len(m.actions))

	for _, name := range m.order {
		rec := m.actions[name]
		statuses[name] = wire.ActionStatus{Register: rec.register, State: rec.fsm.current()}
	}

	m.broadcaster.EmitKeepalive(statuses)
}

func (m *Manager) checkDone() bool {
	for _, name := range m.order {
		if !isTerminal(m.actions[name].fsm.current()) {
			return false
		}
	}

	select {
	case <-m.doneCh:
	default:
		close(m.doneCh)
	}

	return true
}
