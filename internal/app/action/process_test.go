package action

import (
	"context"
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

func drain(t *testing.T, events chan Event, timeout time.Duration) []Event {
	t.Helper()

	var got []Event
	deadline := time.After(timeout)

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return got
			}

			got = append(got, e)
		case <-deadline:
			return got
		}
	}
}

func Test_Subprocess_EmitsDataAndFinishes(t *testing.T) {
	ep := NewSubprocess("shell", "0", "echo hello; echo world 1>&2", config.SeparatorByNewline, true, testLogger())

	events := make(chan Event, 16)
	require.NoError(t, ep.Run(context.Background(), events))

	ep.Wait()
	close(events)

	got := drain(t, events, time.Second)

	var sawHello, sawWorld, sawFinished bool

	for _, e := range got {
		switch {
		case e.Kind == EventDataEmitted && e.FD == wire.FDStdout && e.Data == "hello":
			sawHello = true
		case e.Kind == EventDataEmitted && e.FD == wire.FDStderr && e.Data == "world":
			sawWorld = true
		case e.Kind == EventFinished:
			sawFinished = true
			assert.Equal(t, 0, e.Code)
		}
	}

	assert.True(t, sawHello)
	assert.True(t, sawWorld)
	assert.True(t, sawFinished)
}

func Test_Subprocess_NonZeroExit(t *testing.T) {
	ep := NewSubprocess("failer", "0", "exit 7", config.SeparatorByNewline, true, testLogger())

	events := make(chan Event, 8)
	require.NoError(t, ep.Run(context.Background(), events))
	ep.Wait()
	close(events)

	got := drain(t, events, time.Second)

	var code int
	for _, e := range got {
		if e.Kind == EventFinished {
			code = e.Code
		}
	}

	assert.Equal(t, 7, code)
}

func Test_Subprocess_StdinInjection(t *testing.T) {
	ep := NewSubprocess("cat", "0", "cat", config.SeparatorByNewline, true, testLogger())

	events := make(chan Event, 16)
	require.NoError(t, ep.Run(context.Background(), events))

	ep.Send([]byte("ping"))

	time.Sleep(100 * time.Millisecond)
	ep.Stop()
	ep.Wait()
	close(events)

	got := drain(t, events, time.Second)

	var sawEcho, sawStdinEvent bool

	for _, e := range got {
		if e.Kind == EventDataEmitted && e.FD == wire.FDStdout && e.Data == "ping" {
			sawEcho = true
		}

		if e.Kind == EventDataEmitted && e.FD == wire.FDStdin && e.Data == "ping" {
			sawStdinEvent = true
		}
	}

	assert.True(t, sawEcho)
	assert.True(t, sawStdinEvent)
}

func Test_Subprocess_StopTerminatesSleepingProcess(t *testing.T) {
	ep := NewSubprocess("sleeper", "0", "sleep 30", config.SeparatorByNewline, true, testLogger())

	events := make(chan Event, 4)
	require.NoError(t, ep.Run(context.Background(), events))

	assert.True(t, ep.IsActive())

	require.NoError(t, ep.Stop())
	ep.Wait()

	assert.False(t, ep.IsActive())
}

func Test_Subprocess_FinishedFiresOnlyAfterStdinFeederExits(t *testing.T) {
	ep := NewSubprocess("quick", "0", "echo hi", config.SeparatorByNewline, true, testLogger())

	events := make(chan Event, 16)
	require.NoError(t, ep.Run(context.Background(), events))

	ep.Wait()
	close(events)

	got := drain(t, events, time.Second)

	var sawFinished bool
	for _, e := range got {
		if e.Kind == EventFinished {
			sawFinished = true
		}
	}

	assert.True(t, sawFinished, "EventFinished must fire even when the child never reads stdin, once every stream producer (including the stdin feeder) has observed end-of-stream")
}

func Test_SSHArgs_BuildsHostAndCommand(t *testing.T) {
	args := sshArgs(config.SSHConfig{User: "dev", Host: "box", Port: 2222, IdentityFile: "/key"}, "tail -f log")

	assert.Contains(t, args, "dev@box")
	assert.Contains(t, args, "tail -f log")
	assert.Contains(t, args, "-p")
	assert.Contains(t, args, "2222")
}
