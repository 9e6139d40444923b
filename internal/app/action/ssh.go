package action

import (
	"fmt"
	"os/exec"
	"strconv"

	"logwatch/internal/config"
	"logwatch/internal/config/logger"
)

// SSH launches a remote command over ssh(1), sharing the same run/send/stop
// contract as Subprocess — the launch command line is the only difference
// between the two kinds.
type SSH struct {
	*process
}

// NewSSH constructs an SSH-backed endpoint from its launch parameters.
func NewSSH(name, register, command string, ssh config.SSHConfig, sepMethod string, sepTrim bool, log logger.Logger) *SSH {
	args := sshArgs(ssh, command)
	cmd := exec.Command("ssh", args...)

	return &SSH{process: newProcess(name, register, cmd, sepMethod, sepTrim, log)}
}

func sshArgs(ssh config.SSHConfig, command string) []string {
	var args []string

	if ssh.Port != 0 {
		args = append(args, "-p", strconv.Itoa(ssh.Port))
	}

	if ssh.IdentityFile != "" {
		args = append(args, "-i", ssh.IdentityFile)
	}

	args = append(args, ssh.ExtraOptions...)

	target := ssh.Host
	if ssh.User != "" {
		target = fmt.Sprintf("%s@%s", ssh.User, ssh.Host)
	}

	args = append(args, target, command)

	return args
}
