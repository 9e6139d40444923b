// Package client is the viewer's TCP connection to a broadcast bus: a
// reconnect-on-disconnect loop feeding decoded records to the caller, and
// a send path for control frames (stdin, markers, stop-all, late-join).
package client

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	appErrors "logwatch/internal/app/errors"
	"logwatch/internal/app/wire"
	"logwatch/internal/config"
	"logwatch/internal/config/logger"
)

// Record is a decoded inbound frame, still in its raw form and a sniffed
// envelope — callers switch on Envelope.Type and decode further as needed.
type Record struct {
	Envelope wire.Envelope
	Frame    []byte
}

// Client maintains a connection to addr, reconnecting on loss and
// re-requesting late-join replay each time a connection is (re-)established.
type Client struct {
	addr string
	log  logger.Logger

	mu     sync.Mutex
	conn   net.Conn
	active bool

	records chan Record
}

// New constructs a Client targeting addr ("host:port"). Call Run to start
// the connect/reconnect loop; inbound records arrive on Records().
func New(addr string, log logger.Logger) *Client {
	return &Client{
		addr:    addr,
		log:     log,
		records: make(chan Record, 1024),
	}
}

// Records returns the channel inbound records are delivered on.
func (c *Client) Records() <-chan Record {
	return c.records
}

// Active reports whether the client currently holds a live connection.
func (c *Client) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active
}

// Run drives the connect/reconnect loop until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := net.Dial("tcp", c.addr)
		if err != nil {
			c.log.Warn().Err(err).Str("addr", c.addr).Msg("viewer connect failed, retrying")
			if !sleepOrDone(ctx, config.ViewerReconnectInterval) {
				return
			}

			continue
		}

		c.setConn(conn)
		c.requestLateJoin()

		c.readLoop(ctx, conn)

		c.clearConn(conn)

		if !sleepOrDone(ctx, config.ViewerReconnectInterval) {
			return
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Client) setConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn = conn
	c.active = true
}

func (c *Client) clearConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
		c.active = false
	}
}

func (c *Client) readLoop(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	dec := wire.NewDecoder(bufio.NewReader(conn))

	for {
		frame, err := dec.ReadFrame()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn().Err(err).Msg("connection to server lost")
			}

			return
		}

		env, err := wire.DecodeEnvelope(frame)
		if err != nil {
			c.log.Warn().Err(err).Msg("malformed frame from server")
			continue
		}

		select {
		case c.records <- Record{Envelope: env, Frame: frame}:
		case <-ctx.Done():
			return
		}
	}
}

// Send writes one control frame to the current connection, if any.
func (c *Client) Send(v interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return appErrors.ErrConnectionLost
	}

	frame, err := wire.Encode(v)
	if err != nil {
		return err
	}

	_, err = conn.Write(frame)

	return err
}

func (c *Client) requestLateJoin() {
	if err := c.Send(wire.GetLateJoinRecordsControl{Type: wire.TypeGetLateJoinRecords}); err != nil {
		c.log.Warn().Err(err).Msg("failed to request late-join replay")
	}
}

// SetMarker sends a set-marker control frame.
func (c *Client) SetMarker(name string) error {
	return c.Send(wire.SetMarkerControl{Type: wire.TypeSetMarker, Name: name})
}

// SendStdin sends a send-stdin control frame targeting register.
func (c *Client) SendStdin(register, data string) error {
	return c.Send(wire.SendStdinControl{
		Type:             wire.TypeSendStdin,
		EndpointRegister: register,
		Data:             data,
	})
}

// StopAll sends a stop-all control frame.
func (c *Client) StopAll() error {
	return c.Send(wire.StopAllControl{Type: wire.TypeStopAll})
}
