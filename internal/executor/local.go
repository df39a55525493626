package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"bedrockcron/config"
)

// runFunc runs an argv and returns its combined output. Swappable in tests.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}

// Local sends console commands through the container CLI on this host.
type Local struct {
	container  string
	dockerPath string
	run        runFunc
}

func NewLocal(profile config.Profile) *Local {
	return &Local{
		container:  profile.Container,
		dockerPath: profile.DockerPath,
		run:        runCommand,
	}
}

func (l *Local) Execute(ctx context.Context, command string) (string, error) {
	if err := ValidateCommand(command); err != nil {
		return "", err
	}

	// The command travels as one argv element; no shell is involved.
	out, err := l.run(ctx, l.dockerPath, "exec", l.container, "send-command", command)
	output := strings.TrimSpace(string(out))
	if err == nil {
		return output, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return output, execErr(KindTimeout, "no response from container %s within deadline", l.container)
	}
	if isContainerDown(output) {
		return output, execErr(KindContainerNotRunning, "container %s is not running", l.container)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return output, execErr(KindExecFailed, "send-command exited %d: %s", exitErr.ExitCode(), firstLine(output))
	}
	return output, execErr(KindExecFailed, "container exec: %v", err)
}
