// Package bus implements the TCP Broadcast Bus: a listener that accepts
// viewer connections, fans out NUL-terminated JSON frames to all of them,
// and reads control frames back off each connection.
package bus

import (
	"net"
	"sync"

	"logwatch/internal/config/logger"
)

// outboxSize bounds how far behind one client's writer may fall before
// frames are dropped for that client alone — a slow or stuck viewer must
// never stall the other connected viewers or the action stream.
const outboxSize = 1024

// Client is one connected viewer: a raw connection plus a buffered outbox
// drained by its own writer goroutine.
type Client struct {
	conn net.Conn
	out  chan []byte
	log  logger.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient constructs a Client wrapping conn.
func NewClient(conn net.Conn, log logger.Logger) *Client {
	return &Client{
		conn: conn,
		out:  make(chan []byte, outboxSize),
		log:  log,
		done: make(chan struct{}),
	}
}

// Send enqueues frame for this client only. Non-blocking: a full outbox
// drops the frame and logs it rather than backing up the sender.
func (c *Client) Send(frame []byte) {
	select {
	case c.out <- frame:
	default:
		c.log.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("client outbox full, dropping frame")
	}
}

// WritePump drains the outbox to the connection until Close is called.
func (c *Client) WritePump() {
	for {
		select {
		case frame, ok := <-c.out:
			if !ok {
				return
			}

			if _, err := c.conn.Write(frame); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close closes the underlying connection; safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
