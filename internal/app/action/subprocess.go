package action

import (
	"os/exec"

	"logwatch/internal/config/logger"
)

// Subprocess launches command through the shell, capturing its stdout,
// stderr and stdin.
type Subprocess struct {
	*process
}

// NewSubprocess constructs a shell-invoked endpoint. sepMethod/sepTrim
// configure the per-fd event separator applied to its output.
func NewSubprocess(name, register, command, sepMethod string, sepTrim bool, log logger.Logger) *Subprocess {
	cmd := exec.Command("sh", "-c", command)

	return &Subprocess{process: newProcess(name, register, cmd, sepMethod, sepTrim, log)}
}
