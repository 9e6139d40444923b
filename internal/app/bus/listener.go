package bus

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	appErrors "logwatch/internal/app/errors"
	"logwatch/internal/app/wire"
	"logwatch/internal/config"
	"logwatch/internal/config/logger"
)

// ControlHandler dispatches control frames read off a client connection.
// The Service Manager implements this.
type ControlHandler interface {
	HandleSetMarker(name string)
	HandleGetLateJoinRecords(c *Client)
	HandleSendStdin(register, data string)
	HandleStopAll()
}

// Listener binds addr and runs the accept loop, handing each connection a
// Client plus a goroutine that decodes its inbound control frames.
type Listener struct {
	addr    string
	hub     *Hub
	handler ControlHandler
	log     logger.Logger
}

// NewListener constructs a Listener. Run must be called to actually bind.
func NewListener(addr string, hub *Hub, handler ControlHandler, log logger.Logger) *Listener {
	return &Listener{addr: addr, hub: hub, handler: handler, log: log}
}

// Run binds (retrying on failure per the configured backoff) and accepts
// connections until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := l.bindWithRetry(ctx)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	l.log.Info().Str("addr", l.addr).Msg("broadcast bus listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			l.log.Warn().Err(err).Msg("accept failed")

			continue
		}

		client := NewClient(conn, l.log)
		l.hub.Register(client)

		go l.serve(client)
	}
}

func (l *Listener) bindWithRetry(ctx context.Context) (net.Listener, error) {
	var lastErr error

	for attempt := 0; attempt < config.BindRetryMaxAttempts; attempt++ {
		ln, err := net.Listen("tcp", l.addr)
		if err == nil {
			return ln, nil
		}

		lastErr = err

		l.log.Warn().Err(err).Str("addr", l.addr).Int("attempt", attempt+1).Msg("bind failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(config.BindRetryInterval):
		}
	}

	return nil, fmt.Errorf("%w: %w", appErrors.ErrBindFailed, lastErr)
}

// serve reads frames from one client's connection until it disconnects,
// dispatching control frames to the handler. A frame that is not valid JSON
// is logged and dropped; the connection stays open.
func (l *Listener) serve(c *Client) {
	defer func() {
		l.hub.Unregister(c)
		c.Close()
	}()

	go c.WritePump()

	dec := wire.NewDecoder(bufio.NewReader(c.conn))

	for {
		frame, err := dec.ReadFrame()
		if err != nil {
			return
		}

		env, err := wire.DecodeEnvelope(frame)
		if err != nil {
			l.log.Warn().Err(err).Msg("malformed control frame")
			continue
		}

		l.dispatch(c, env, frame)
	}
}

func (l *Listener) dispatch(c *Client, env wire.Envelope, frame []byte) {
	switch env.Type {
	case wire.TypeSetMarker:
		var rec wire.SetMarkerControl
		if err := wire.DecodeInto(frame, &rec); err != nil {
			l.log.Warn().Err(err).Msg("malformed set-marker frame")
			return
		}

		l.handler.HandleSetMarker(rec.Name)

	case wire.TypeGetLateJoinRecords:
		l.handler.HandleGetLateJoinRecords(c)

	case wire.TypeSendStdin:
		var rec wire.SendStdinControl
		if err := wire.DecodeInto(frame, &rec); err != nil {
			l.log.Warn().Err(err).Msg("malformed send-stdin frame")
			return
		}

		l.handler.HandleSendStdin(rec.EndpointRegister, rec.Data)

	case wire.TypeStopAll:
		l.handler.HandleStopAll()

	default:
		l.log.Warn().Str("type", string(env.Type)).Msg("unknown control frame type")
	}
}
