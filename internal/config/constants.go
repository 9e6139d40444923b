package config

import "time"

// Application metadata
const (
	AppName = "logwatch"
	Version = "0.1.0"

	ConfigFile = "logwatch.yaml"
)

// Logging defaults
const (
	LogLevel  = "info"
	LogFormat = "console"
)

// Server defaults
const (
	DefaultSocketAddr            = "127.0.0.1"
	DefaultSocketPort            = 2207
	DefaultLateJoinersBufferSize = 256
	DefaultMaxHeldLines          = 5000
)

// Endpoint kinds
const (
	KindSubprocess = "subprocess"
	KindSSH        = "ssh"
)

// Event separation methods
const (
	SeparatorByNewline  = "by-newline"
	SeparatorByBrackets = "by-brackets"
)

// Precondition kinds
const (
	PreconditionAwaitCompletion = "AWAIT_COMPLETION"
)

// Show modes
const (
	ShowNone     = "none"
	ShowFiltered = "filtered"
	ShowAll      = "all"
)

// Viewer rendering defaults, used when a view config leaves these unset.
const (
	DefaultLineFormat          = "{format:endpoint}{date} {time} {endpoint:<12}{format:reset} {format:watch}{data}{format:reset}"
	DefaultContinuedLineFormat = "                 {format:watch}{data}{format:reset}"
)

// Timing constants
const (
	ManagerTickInterval     = 100 * time.Millisecond
	KeepaliveInterval       = 400 * time.Millisecond
	ShutdownDrainTimeout    = 5 * time.Second
	BindRetryInterval       = 5 * time.Second
	BindRetryMaxAttempts    = 60
	ViewerPollInterval      = 100 * time.Millisecond
	ViewerReconnectInterval = 100 * time.Millisecond
)
