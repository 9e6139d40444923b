package client

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logwatch/internal/app/wire"
	"logwatch/internal/config"
	"logwatch/internal/config/logger"
)

func testLogger() logger.Logger {
	return logger.NewLoggerWithOutput(config.DefaultConfig(), nil)
}

func Test_Client_RequestsLateJoinOnConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		accepted <- conn
	}()

	c := New(ln.Addr().String(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Run(ctx)

	var serverConn net.Conn
	select {
	case serverConn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted connection")
	}
	defer serverConn.Close()

	dec := wire.NewDecoder(bufio.NewReader(serverConn))
	frame, err := dec.ReadFrame()
	require.NoError(t, err)

	env, err := wire.DecodeEnvelope(frame)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeGetLateJoinRecords, env.Type)
}

func Test_Client_DeliversInboundRecords(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		accepted <- conn
	}()

	c := New(ln.Addr().String(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Run(ctx)

	serverConn := <-accepted
	defer serverConn.Close()

	// drain the late-join request
	dec := wire.NewDecoder(bufio.NewReader(serverConn))
	_, err = dec.ReadFrame()
	require.NoError(t, err)

	frame, err := wire.Encode(wire.DataRecord{Type: wire.TypeData, Endpoint: "web", Data: "hi"})
	require.NoError(t, err)
	_, err = serverConn.Write(frame)
	require.NoError(t, err)

	select {
	case rec := <-c.Records():
		assert.Equal(t, wire.TypeData, rec.Envelope.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("record never delivered")
	}
}

func Test_Client_ActiveReflectsConnectionState(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		accepted <- conn
	}()

	c := New(ln.Addr().String(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Run(ctx)

	serverConn := <-accepted

	require.Eventually(t, c.Active, time.Second, 10*time.Millisecond)

	serverConn.Close()

	require.Eventually(t, func() bool { return !c.Active() }, time.Second, 10*time.Millisecond)
}

func Test_Client_SendWithoutConnectionErrors(t *testing.T) {
	c := New("127.0.0.1:1", testLogger())
	err := c.StopAll()
	assert.Error(t, err)
}

func Test_Client_SendStdinAndSetMarker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		accepted <- conn
	}()

	c := New(ln.Addr().String(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Run(ctx)

	serverConn := <-accepted
	defer serverConn.Close()

	dec := wire.NewDecoder(bufio.NewReader(serverConn))
	_, err = dec.ReadFrame() // late-join request
	require.NoError(t, err)

	require.NoError(t, c.SendStdin("a", "hello"))

	frame, err := dec.ReadFrame()
	require.NoError(t, err)

	var rec wire.SendStdinControl
	require.NoError(t, wire.DecodeInto(frame, &rec))
	assert.Equal(t, "a", rec.EndpointRegister)
	assert.Equal(t, "hello", rec.Data)
}
