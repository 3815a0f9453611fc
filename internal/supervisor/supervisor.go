package supervisor

import (
	"errors"
	"log/slog"
	"os/exec"
	"time"
)

// ErrRunning is returned by Spawn when the previous check process is still alive.
var ErrRunning = errors.New("supervisor: previous check run still in progress")

// State is the result of a Poll.
type State int

const (
	// Idle means no check process is tracked.
	Idle State = iota
	// Running means the tracked process has not exited yet.
	Running
	// Succeeded means the tracked process exited with status 0 and was released.
	Succeeded
	// Failed means the tracked process exited non-zero and was released.
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// stopWait bounds how long Stop waits for a killed child to be reaped.
const stopWait = 5 * time.Second

// child is the tracked process plus its exit notification.
type child struct {
	proc    Process
	started time.Time
	// exited receives the Wait result exactly once.
	exited chan error
}

// Supervisor runs at most one check process at a time.
//
// Spawn and Poll never block on the child. A goroutine per child waits for
// the exit and parks the result in a one-slot channel that Poll drains with
// a non-blocking receive. Supervisor is not safe for concurrent use; the
// scheduler loop is its only caller.
type Supervisor struct {
	launcher Launcher
	cur      *child
}

// New returns a Supervisor using l to start check processes.
func New(l Launcher) *Supervisor {
	return &Supervisor{launcher: l}
}

// Spawn starts a check process unless one is already tracked, in which case
// it logs and returns ErrRunning. Launch failures are logged and returned;
// the handle stays clear so the next scheduled spawn tries again.
func (s *Supervisor) Spawn(firstRun bool) error {
	if s.cur != nil {
		slog.Warn("supervisor: not running checks because a previous instance is still running",
			"pid", s.cur.proc.PID())
		return ErrRunning
	}

	proc, err := s.launcher.Launch(firstRun)
	if err != nil {
		slog.Error("supervisor: could not start check process", "err", err)
		return err
	}

	c := &child{proc: proc, started: time.Now(), exited: make(chan error, 1)}
	go func() { c.exited <- proc.Wait() }()
	s.cur = c

	slog.Info("supervisor: running local checks", "pid", proc.PID(), "first_run", firstRun)
	return nil
}

// Poll inspects the tracked process without blocking.
func (s *Supervisor) Poll() State {
	if s.cur == nil {
		return Idle
	}

	select {
	case err := <-s.cur.exited:
		pid := s.cur.proc.PID()
		elapsed := time.Since(s.cur.started)
		s.cur = nil
		if err != nil {
			slog.Error("supervisor: error while running checks",
				"pid", pid, "exit_code", exitCode(err), "elapsed", elapsed, "err", err)
			return Failed
		}
		slog.Debug("supervisor: check process exited", "pid", pid, "elapsed", elapsed)
		return Succeeded
	default:
		slog.Debug("supervisor: check process still running", "pid", s.cur.proc.PID())
		return Running
	}
}

// PID returns the tracked process id, or 0 when none is tracked.
func (s *Supervisor) PID() int {
	if s.cur == nil {
		return 0
	}
	return s.cur.proc.PID()
}

// Running reports whether a check process is tracked.
func (s *Supervisor) Running() bool { return s.cur != nil }

// Stop kills the tracked process, if any, and waits briefly for it to be reaped.
func (s *Supervisor) Stop() {
	if s.cur == nil {
		return
	}
	c := s.cur
	s.cur = nil

	if err := c.proc.Kill(); err != nil {
		slog.Warn("supervisor: kill check process", "pid", c.proc.PID(), "err", err)
	}
	select {
	case <-c.exited:
	case <-time.After(stopWait):
		slog.Warn("supervisor: check process did not exit after kill", "pid", c.proc.PID())
	}
}

// exitCode extracts the process exit status from a Wait error, or -1.
func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
