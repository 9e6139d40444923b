package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"logwatch/internal/app/wire"
	"logwatch/internal/config"
	"logwatch/internal/config/logger"
)

type recordedData struct {
	name string
	fd   wire.FD
	data string
}

type recordingBroadcaster struct {
	mu         sync.Mutex
	data       []recordedData
	keepalives []map[string]wire.ActionStatus
}

func (r *recordingBroadcaster) EmitData(name string, fd wire.FD, data string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data = append(r.data, recordedData{name: name, fd: fd, data: data})
}

func (r *recordingBroadcaster) EmitKeepalive(actions map[string]wire.ActionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.keepalives = append(r.keepalives, actions)
}

func (r *recordingBroadcaster) snapshot() []recordedData {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]recordedData{}, r.data...)
}

func testLogger() logger.Logger {
	return logger.NewLoggerWithOutput(config.DefaultConfig(), nil)
}

func Test_Manager_RunsToCompletion(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Endpoints = []config.EndpointConfig{
		{Register: "1", Name: "shell", Type: config.KindSubprocess, Command: "echo hello"},
	}
	cfg.ApplyDefaults()

	broadcaster := &recordingBroadcaster{}
	mgr, err := New(cfg, broadcaster, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	require.NoError(t, mgr.Run(ctx))

	var sawHello bool
	for _, d := range broadcaster.snapshot() {
		if d.name == "shell" && d.fd == wire.FDStdout && d.data == "hello" {
			sawHello = true
		}
	}

	assert.True(t, sawHello)
}

func Test_Manager_GatesOnPrecondition(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Endpoints = []config.EndpointConfig{
		{Register: "1", Name: "first", Type: config.KindSubprocess, Command: "echo first"},
		{Register: "2", Name: "second", Type: config.KindSubprocess, Command: "echo second",
			Await: []config.AwaitConfig{{Completed: "first"}}},
	}
	cfg.ApplyDefaults()

	broadcaster := &recordingBroadcaster{}
	mgr, err := New(cfg, broadcaster, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	require.NoError(t, mgr.Run(ctx))

	var firstIdx, secondIdx = -1, -1

	for i, d := range broadcaster.snapshot() {
		if d.data == "first" {
			firstIdx = i
		}

		if d.data == "second" {
			secondIdx = i
		}
	}

	require.NotEqual(t, -1, firstIdx)
	require.NotEqual(t, -1, secondIdx)
	assert.Less(t, firstIdx, secondIdx)
}

func Test_Manager_PreconditionFailureBlocksDependent(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Endpoints = []config.EndpointConfig{
		{Register: "1", Name: "first", Type: config.KindSubprocess, Command: "exit 1"},
		{Register: "2", Name: "second", Type: config.KindSubprocess, Command: "echo second",
			Await: []config.AwaitConfig{{Completed: "first"}}},
	}
	cfg.ApplyDefaults()

	broadcaster := &recordingBroadcaster{}
	mgr, err := New(cfg, broadcaster, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	require.NoError(t, mgr.Run(ctx))

	for _, d := range broadcaster.snapshot() {
		assert.NotEqual(t, "second", d.data, "dependent action must never launch when its precondition finished with an error")
	}
}

func Test_Manager_SendStdin_UnknownRegisterErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	broadcaster := &recordingBroadcaster{}
	mgr, err := New(cfg, broadcaster, testLogger())
	require.NoError(t, err)

	err = mgr.SendStdin("9", "data")
	assert.Error(t, err)
}

func Test_Manager_StopAll_TerminatesRunningActions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.StayActive = true
	cfg.Endpoints = []config.EndpointConfig{
		{Register: "1", Name: "sleeper", Type: config.KindSubprocess, Command: "sleep 30"},
	}
	cfg.ApplyDefaults()

	broadcaster := &recordingBroadcaster{}
	mgr, err := New(cfg, broadcaster, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- mgr.Run(ctx) }()

	// give the tick loop time to launch the sleeper.
	time.Sleep(200 * time.Millisecond)

	mgr.StopAll()

	select {
	case <-mgr.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("manager did not reach done after StopAll")
	}

	cancel()
	<-runDone
}

// mockLoggerAcceptingAny builds a MockLogger whose every level method
// returns a NoopEvent, so a test can assert a specific call happened
// without expecting the full sequence of incidental log lines.
func mockLoggerAcceptingAny(ctrl *gomock.Controller) *logger.MockLogger {
	mockLog := logger.NewMockLogger(ctrl)

	mockLog.EXPECT().Error().Return(&logger.NoopEvent{}).AnyTimes()
	mockLog.EXPECT().Warn().Return(&logger.NoopEvent{}).AnyTimes()
	mockLog.EXPECT().Debug().Return(&logger.NoopEvent{}).AnyTimes()

	return mockLog
}

func Test_Manager_LogsActionLaunched(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLog := mockLoggerAcceptingAny(ctrl)
	mockLog.EXPECT().Info().Return(&logger.NoopEvent{}).MinTimes(1)

	cfg := config.DefaultConfig()
	cfg.Endpoints = []config.EndpointConfig{
		{Register: "1", Name: "shell", Type: config.KindSubprocess, Command: "echo hello"},
	}
	cfg.ApplyDefaults()

	broadcaster := &recordingBroadcaster{}
	mgr, err := New(cfg, broadcaster, mockLog)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	require.NoError(t, mgr.Run(ctx))
}
