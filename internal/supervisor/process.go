package supervisor

import (
	"fmt"
	"os"
	"os/exec"
)

// FirstRunFlag is appended to the child's arguments on the first check run.
const FirstRunFlag = "--first-run"

// Process is a started child process.
type Process interface {
	PID() int
	// Wait blocks until the process exits. A nil error means exit status 0.
	Wait() error
	Kill() error
}

// Launcher starts one check process. It must not wait for the process.
type Launcher interface {
	Launch(firstRun bool) (Process, error)
}

// Command launches an executable with fixed arguments, adding FirstRunFlag
// on the first run. The child inherits stdout and stderr.
type Command struct {
	Path string
	Args []string
	Env  []string // extra environment, appended to the parent's
}

// Launch implements Launcher.
func (c Command) Launch(firstRun bool) (Process, error) {
	args := append([]string(nil), c.Args...)
	if firstRun {
		args = append(args, FirstRunFlag)
	}

	cmd := exec.Command(c.Path, args...) //nolint:gosec // path is our own executable
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("supervisor: start %s: %w", c.Path, err)
	}
	return &execProcess{cmd: cmd}, nil
}

// execProcess adapts *exec.Cmd to Process.
type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) PID() int    { return p.cmd.Process.Pid }
func (p *execProcess) Wait() error { return p.cmd.Wait() }
func (p *execProcess) Kill() error { return p.cmd.Process.Kill() }
