// Package executor sends console commands to the managed Bedrock server,
// hiding whether the container runs on this host or behind SSH.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bedrockcron/config"
)

// Kind classifies executor failures. Every non-success path maps to exactly
// one kind so callers can record and display it.
type Kind string

const (
	KindInvalidCommand      Kind = "invalid_command"
	KindContainerNotRunning Kind = "container_not_running"
	KindConnectionFailed    Kind = "connection_failed"
	KindExecFailed          Kind = "exec_failed"
	KindTimeout             Kind = "timeout"
)

// ExecError is a classified execution failure.
type ExecError struct {
	Kind Kind
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

func execErr(kind Kind, format string, args ...any) *ExecError {
	return &ExecError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure kind from an error chain, or "" if the error
// did not come from an executor.
func KindOf(err error) Kind {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

// Executor delivers one console command to the managed server and returns
// the captured output. Implementations never retry; the timeout carried by
// ctx is a hard cap.
type Executor interface {
	Execute(ctx context.Context, command string) (string, error)
}

// New picks the backend for the given connection profile.
func New(profile config.Profile) (Executor, error) {
	switch profile.Mode {
	case config.ModeLocal:
		return NewLocal(profile), nil
	case config.ModeSSH:
		return NewSSH(profile), nil
	default:
		return nil, fmt.Errorf("unknown connection mode %q", profile.Mode)
	}
}

// ValidateCommand rejects empty commands and control characters that the
// console input stream cannot carry. Shell metacharacters are fine: both
// backends hand the command over as a single literal argument, never as an
// unescaped shell string.
func ValidateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return execErr(KindInvalidCommand, "command is empty")
	}
	for _, r := range command {
		if r < 0x20 || r == 0x7f {
			return execErr(KindInvalidCommand, "command contains control character %q", r)
		}
	}
	return nil
}

// shellQuote wraps s in single quotes for a remote shell, escaping embedded
// quotes the POSIX way.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// isContainerDown matches the docker CLI's wording for absent or stopped
// containers.
func isContainerDown(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "is not running") ||
		strings.Contains(lower, "no such container") ||
		strings.Contains(lower, "is paused")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
