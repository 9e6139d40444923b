// Package service implements the Service Manager: it assigns sequence
// numbers and marker names, maintains the late-join replay buffer, turns
// Action Manager events into wire records broadcast over the bus, and
// dispatches inbound control frames either directly (markers, late-join
// replay) or to the Action Manager (stdin, stop-all).
package service

import (
	"fmt"
	"sync"
	"time"

	"logwatch/internal/app/bus"
	"logwatch/internal/app/replay"
	"logwatch/internal/app/wire"
	"logwatch/internal/config/logger"
)

// ActionController is the subset of the Action Manager the Service Manager
// dispatches control frames to. Defined here (not imported from manager) so
// the two packages depend on each other only through interfaces.
type ActionController interface {
	SendStdin(register, data string) error
	StopAll()
}

// Manager is the Service Manager. It implements manager.Broadcaster (so the
// Action Manager can push emitted bytes through it) and bus.ControlHandler
// (so the bus can dispatch inbound control frames through it).
type Manager struct {
	hub     *bus.Hub
	replay  *replay.Buffer
	actions ActionController
	log     logger.Logger

	mu           sync.Mutex
	dataSeq      uint64
	keepaliveSeq uint64
	markerSeq    int
}

// NewManager constructs a Service Manager around the Action Manager that
// receives its control requests. The two are mutually referential: the
// Action Manager is built first and receives this Service Manager
// afterwards through manager.SetBroadcaster.
func NewManager(hub *bus.Hub, replayBuf *replay.Buffer, actions ActionController, log logger.Logger) *Manager {
	return &Manager{hub: hub, replay: replayBuf, actions: actions, log: log}
}

// nextDataSeq hands out the data-record sequence 0,1,2,…, contiguous and
// independent of keepalive numbering: Testable Property 1 requires data
// seq to form the unbroken run N=0..len-1, which a shared counter with
// keepalive emission would puncture with gaps.
func (m *Manager) nextDataSeq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := m.dataSeq
	m.dataSeq++

	return seq
}

func (m *Manager) nextKeepaliveSeq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := m.keepaliveSeq
	m.keepaliveSeq++

	return seq
}

func nowStamp() (date, clock string) {
	now := time.Now()
	return now.Format("2006-01-02"), now.Format("15:04:05.000")
}

// EmitData broadcasts one emitted event and retains it for late-join replay.
func (m *Manager) EmitData(endpointName string, fd wire.FD, data string) {
	date, clock := nowStamp()

	rec := wire.DataRecord{
		Type:     wire.TypeData,
		Endpoint: endpointName,
		FD:       fd,
		Data:     data,
		Seq:      m.nextDataSeq(),
		Date:     date,
		Time:     clock,
	}

	m.replay.Append(rec)
	m.broadcastRecord(rec)
}

// EmitMarker broadcasts and retains a marker record. An empty name is
// auto-numbered "MARKER <n>".
func (m *Manager) EmitMarker(name string) {
	if name == "" {
		m.mu.Lock()
		m.markerSeq++
		name = fmt.Sprintf("MARKER %d", m.markerSeq)
		m.mu.Unlock()
	}

	date, clock := nowStamp()

	rec := wire.MarkerRecord{Type: wire.TypeMarker, Name: name, Date: date, Time: clock}

	m.replay.Append(rec)
	m.broadcastRecord(rec)
}

// EmitKeepalive broadcasts a liveness snapshot. Keepalives are never
// retained for replay — a late joiner gets a fresh one within one interval.
func (m *Manager) EmitKeepalive(actions map[string]wire.ActionStatus) {
	rec := wire.KeepaliveRecord{Type: wire.TypeKeepalive, Seq: m.nextKeepaliveSeq(), Actions: actions}

	m.broadcastRecord(rec)
}

func (m *Manager) broadcastRecord(rec interface{}) {
	frame, err := wire.Encode(rec)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to encode wire record")
		return
	}

	m.hub.Broadcast(frame)
}

// HandleSetMarker implements bus.ControlHandler.
func (m *Manager) HandleSetMarker(name string) {
	m.EmitMarker(name)
}

// HandleGetLateJoinRecords implements bus.ControlHandler: it replays the
// buffered history to the requesting client only.
func (m *Manager) HandleGetLateJoinRecords(c *bus.Client) {
	for _, rec := range m.replay.Snapshot() {
		frame, err := wire.Encode(rec)
		if err != nil {
			m.log.Error().Err(err).Msg("failed to encode replay record")
			continue
		}

		c.Send(frame)
	}
}

// HandleSendStdin implements bus.ControlHandler.
func (m *Manager) HandleSendStdin(register, data string) {
	if err := m.actions.SendStdin(register, data); err != nil {
		m.log.Warn().Str("register", register).Err(err).Msg("send-stdin rejected")
	}
}

// HandleStopAll implements bus.ControlHandler.
func (m *Manager) HandleStopAll() {
	m.actions.StopAll()
}
