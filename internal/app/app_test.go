package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"logwatch/internal/config"
	"logwatch/internal/config/logger"
)

type mockLifecycle struct {
	onAppend func(fx.Hook)
}

func (m *mockLifecycle) Append(hook fx.Hook) {
	if m.onAppend != nil {
		m.onAppend(hook)
	}
}

type noopShutdowner struct {
	shutdown bool
}

func (s *noopShutdowner) Shutdown(...fx.ShutdownOption) error {
	s.shutdown = true
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.SocketPort = 0 // bind an ephemeral port
	cfg.Endpoints = []config.EndpointConfig{
		{Register: "1", Name: "echo", Type: config.KindSubprocess, Command: "echo hi"},
	}
	cfg.ApplyDefaults()

	require.NoError(t, cfg.Validate())

	return cfg
}

func testLogger() logger.Logger {
	return logger.NewLoggerWithOutput(config.DefaultConfig(), nil)
}

func Test_NewApp_WiresComponents(t *testing.T) {
	application, err := NewApp(testConfig(t), &noopShutdowner{}, testLogger())

	require.NoError(t, err)
	assert.NotNil(t, application.manager)
	assert.NotNil(t, application.listener)
}

func Test_NewApp_InvalidEndpointFails(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Endpoints = []config.EndpointConfig{
		{Register: "1", Name: "bad", Type: "carrier-pigeon"},
	}

	_, err := NewApp(cfg, &noopShutdowner{}, testLogger())
	assert.Error(t, err)
}

func Test_App_Run_FinishesWhenActionsComplete(t *testing.T) {
	application, err := NewApp(testConfig(t), &noopShutdowner{}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = application.Run(ctx)
	assert.NoError(t, err)
}

func Test_App_Run_StopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.StayActive = true

	application, err := NewApp(cfg, &noopShutdowner{}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func Test_Register_AppendsStartAndStopHooks(t *testing.T) {
	application, err := NewApp(testConfig(t), &noopShutdowner{}, testLogger())
	require.NoError(t, err)

	var captured fx.Hook

	lifecycle := &mockLifecycle{onAppend: func(h fx.Hook) { captured = h }}

	Register(lifecycle, application)

	assert.NotNil(t, captured.OnStart)
	assert.NotNil(t, captured.OnStop)

	require.NoError(t, captured.OnStart(context.Background()))
	require.NoError(t, captured.OnStop(context.Background()))
}
