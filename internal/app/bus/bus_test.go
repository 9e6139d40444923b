package bus

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

type recordingHandler struct {
	markers    []string
	lateJoins  int
	stdins     [][2]string
	stopAllled bool
}

func (h *recordingHandler) HandleSetMarker(name string)          { h.markers = append(h.markers, name) }
func (h *recordingHandler) HandleGetLateJoinRecords(c *Client)   { h.lateJoins++ }
func (h *recordingHandler) HandleSendStdin(register, data string) {
	h.stdins = append(h.stdins, [2]string{register, data})
}
func (h *recordingHandler) HandleStopAll() { h.stopAllled = true }

func Test_Hub_BroadcastReachesAllClients(t *testing.T) {
	hub := NewHub()

	a := NewClient(pipeConn(t), testLogger())
	b := NewClient(pipeConn(t), testLogger())

	hub.Register(a)
	hub.Register(b)

	assert.Equal(t, 2, hub.Count())

	hub.Broadcast([]byte("x"))

	select {
	case got := <-a.out:
		assert.Equal(t, []byte("x"), got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for client a")
	}

	select {
	case got := <-b.out:
		assert.Equal(t, []byte("x"), got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for client b")
	}

	hub.Unregister(a)
	assert.Equal(t, 1, hub.Count())
}

func pipeConn(t *testing.T) net.Conn {
	t.Helper()

	server, client := net.Pipe()
	t.Cleanup(func() { server.Close(); client.Close() })

	return server
}

func Test_Listener_DispatchesControlFrames(t *testing.T) {
	hub := NewHub()
	handler := &recordingHandler{}
	ln := NewListener("127.0.0.1:0", hub, handler, testLogger())

	tcpLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		conn, err := tcpLn.Accept()
		if err != nil {
			return
		}

		client := NewClient(conn, testLogger())
		hub.Register(client)
		ln.serve(client)
	}()

	conn, err := net.Dial("tcp", tcpLn.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	frame, err := wire.Encode(wire.SetMarkerControl{Type: wire.TypeSetMarker, Name: "checkpoint"})
	require.NoError(t, err)
	_, err = conn.Write(frame)
	require.NoError(t, err)

	frame, err = wire.Encode(wire.SendStdinControl{Type: wire.TypeSendStdin, EndpointRegister: "1", Data: "go"})
	require.NoError(t, err)
	_, err = conn.Write(frame)
	require.NoError(t, err)

	frame, err = wire.Encode(wire.StopAllControl{Type: wire.TypeStopAll})
	require.NoError(t, err)
	_, err = conn.Write(frame)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(handler.markers) == 1 && len(handler.stdins) == 1 && handler.stopAllled {
			break
		}

		time.Sleep(10 * time.Millisecond)
	}

	assert.Equal(t, []string{"checkpoint"}, handler.markers)
	assert.Equal(t, [][2]string{{"1", "go"}}, handler.stdins)
	assert.True(t, handler.stopAllled)

	tcpLn.Close()
}

func Test_Client_SendNonBlockingWhenFull(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	c := NewClient(server, testLogger())

	for i := 0; i < outboxSize; i++ {
		c.Send([]byte("x"))
	}

	// one more Send on a full outbox must not block the caller.
	done := make(chan struct{})

	go func() {
		c.Send([]byte("overflow"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a full outbox")
	}
}

func Test_Decoder_Integration_WithListenerFraming(t *testing.T) {
	r, w := net.Pipe()
	defer r.Close()
	defer w.Close()

	go func() {
		frame, _ := wire.Encode(wire.MarkerRecord{Type: wire.TypeMarker, Name: "m"})
		w.Write(frame)
	}()

	dec := wire.NewDecoder(bufio.NewReader(r))
	frame, err := dec.ReadFrame()
	require.NoError(t, err)

	var rec wire.MarkerRecord
	require.NoError(t, wire.DecodeInto(frame, &rec))
	assert.Equal(t, "m", rec.Name)
}
