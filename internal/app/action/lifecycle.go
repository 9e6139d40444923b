package action

import (
	"os/exec"
	"syscall"
	"time"

	appErrors "logwatch/internal/app/errors"
	"logwatch/internal/config/logger"
)

// configureProcessGroup makes cmd the leader of a new process group so that
// terminateProcessGroup can signal every descendant it spawns, defeating shells that
// re-exec into a different PID.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcessGroup delivers SIGTERM to the entire process group led by
// cmd's process, falling back to signalling the leader directly, then to
// SIGKILL if the group has not exited within timeout.
// Errors indicating the process is already gone are swallowed — the caller
// only needs to know the group is no longer running.
func terminateProcessGroup(cmd *exec.Cmd, log logger.Logger, name string, done <-chan struct{}, timeout time.Duration) error {
	if cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid

	log.Info().Str("endpoint", name).Int("pid", pid).Msg("stopping endpoint")

	if err := signalGroup(pid, syscall.SIGTERM); err != nil {
		if direct := cmd.Process.Signal(syscall.SIGTERM); direct != nil {
			return forceKill(cmd, log, name, done, pid)
		}
	}

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		log.Warn().Str("endpoint", name).Msg("endpoint did not stop gracefully, forcing kill")
		return forceKill(cmd, log, name, done, pid)
	}
}

func signalGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}

func forceKill(cmd *exec.Cmd, log logger.Logger, name string, done <-chan struct{}, pid int) error {
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if killErr := cmd.Process.Kill(); killErr != nil {
			if isProcessGone(killErr) {
				return nil
			}

			log.Error().Str("endpoint", name).Err(killErr).Msg("failed to terminate endpoint")

			return appErrors.ErrFailedToTerminate
		}
	}

	<-done

	return nil
}

// isProcessGone reports whether err indicates the process had already
// exited before the signal was delivered — a benign race, not a failure.
func isProcessGone(err error) bool {
	return err == nil || err.Error() == "os: process already finished"
}
