package action

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	appErrors "logwatch/internal/app/errors"
	"logwatch/internal/app/separator"
	"logwatch/internal/app/wire"
	"logwatch/internal/config/logger"
)

// shutdownTimeout bounds how long Stop waits for a graceful exit before
// escalating to SIGKILL.
const shutdownTimeout = 5 * time.Second

// process is the shared engine behind both Subprocess and SSH endpoints:
// everything past "here is an *exec.Cmd" is identical between the two kinds,
// so it is composed into both rather than expressed as a base class.
type process struct {
	name     string
	register string
	cmd      *exec.Cmd
	log      logger.Logger

	sepMethod string
	sepTrim   bool

	stdin chan []byte

	mu     sync.Mutex
	active bool
	done   chan struct{}
	// exited closes the instant cmd.Wait() returns, ahead of done — it lets
	// feedStdin notice the child is gone without waiting on done itself,
	// which would deadlock: done only closes after streamWG (feedStdin
	// included) has finished.
	exited chan struct{}
}

func newProcess(name, register string, cmd *exec.Cmd, sepMethod string, sepTrim bool, log logger.Logger) *process {
	configureProcessGroup(cmd)

	return &process{
		name:      name,
		register:  register,
		cmd:       cmd,
		log:       log,
		sepMethod: sepMethod,
		sepTrim:   sepTrim,
		stdin:     make(chan []byte, 64),
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
	}
}

func (p *process) Name() string     { return p.name }
func (p *process) Register() string { return p.register }

func (p *process) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.active
}

func (p *process) Wait() {
	<-p.done
}

// Run starts the child, wires stdout/stderr producers and the stdin
// consumer, and arranges for exactly one EventFinished to be pushed to
// events once all three stream workers have observed end-of-stream AND the
// exit status is known.
func (p *process) Run(ctx context.Context, events chan<- Event) error {
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w (stdout): %w", appErrors.ErrFailedToCreatePipe, err)
	}

	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w (stderr): %w", appErrors.ErrFailedToCreatePipe, err)
	}

	stdinPipe, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w (stdin): %w", appErrors.ErrFailedToCreatePipe, err)
	}

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("%w: %w", appErrors.ErrEndpointLaunchFailed, err)
	}

	p.mu.Lock()
	p.active = true
	p.mu.Unlock()

	p.log.Info().Str("endpoint", p.name).Int("pid", p.cmd.Process.Pid).Msg("endpoint started")

	var streamWG sync.WaitGroup

	streamWG.Add(3)

	go p.pump(stdout, wire.FDStdout, events, &streamWG)
	go p.pump(stderr, wire.FDStderr, events, &streamWG)
	go p.feedStdin(ctx, stdinPipe, events, &streamWG)

	go func() {
		waitErr := p.cmd.Wait()
		close(p.exited)
		streamWG.Wait()

		p.mu.Lock()
		p.active = false
		p.mu.Unlock()

		code := exitCode(waitErr)

		events <- Event{Kind: EventFinished, Name: p.name, Code: code}

		close(p.done)
	}()

	return nil
}

// pump reads raw bytes from src (never line-buffering itself — that is the
// separator's job, since by-brackets records can straddle many reads) and
// feeds them to a per-fd separator instance that turns bytes into events.
func (p *process) pump(src io.Reader, fd wire.FD, events chan<- Event, wg *sync.WaitGroup) {
	defer wg.Done()

	sep, err := separator.New(p.sepMethod, p.sepTrim, func(e string) {
		events <- Event{Kind: EventDataEmitted, Name: p.name, FD: fd, Data: e}
	})
	if err != nil {
		p.log.Error().Str("endpoint", p.name).Err(err).Msg("invalid event separator configuration")
		return
	}

	buf := make([]byte, 4096)

	for {
		n, err := src.Read(buf)
		if n > 0 {
			sep.Feed(buf[:n])
		}

		if err != nil {
			return
		}
	}
}

// feedStdin drains p.stdin into the child's stdin pipe, preserving sender
// enqueue order, and emits a synthetic fd=stdin event through a dedicated
// separator so viewers see their own injections rendered the same way any
// other line would be. It is tracked by streamWG like the stdout/stderr
// pumps: the completion callback must not fire until the stdin feeder has
// also observed end-of-stream (the child exiting, or the context closing).
func (p *process) feedStdin(ctx context.Context, w io.WriteCloser, events chan<- Event, wg *sync.WaitGroup) {
	defer wg.Done()
	defer w.Close()

	sep, err := separator.New(p.sepMethod, p.sepTrim, func(e string) {
		events <- Event{Kind: EventDataEmitted, Name: p.name, FD: wire.FDStdin, Data: e}
	})
	if err != nil {
		sep, _ = separator.New("", false, func(string) {})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.exited:
			return
		case data, ok := <-p.stdin:
			if !ok {
				return
			}

			line := append(append([]byte{}, data...), '\n')

			if _, err := w.Write(line); err != nil {
				return
			}

			sep.Feed(line)
		}
	}
}

func (p *process) Send(data []byte) {
	select {
	case p.stdin <- data:
	case <-p.done:
	}
}

func (p *process) Stop() error {
	return terminateProcessGroup(p.cmd, p.log, p.name, p.done, shutdownTimeout)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}

	return 1
}
