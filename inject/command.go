package inject

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
)

var ErrInjectorMissing = errors.New("injection tool not found")

var DefaultCommand = []string{"ydotool", "key"}

const DefaultSocket = "/tmp/.ydotool_socket"

// CommandError is a non-zero exit of the injection tool.
type CommandError struct {
	Argv     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", strings.Join(e.Argv, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// CommandSender runs an external tool once per utterance with every key
// event as an argument.
type CommandSender struct {
	Argv   []string // defaults to DefaultCommand
	Socket string   // exported as YDOTOOL_SOCKET, defaults to DefaultSocket
}

func (s *CommandSender) Name() string { return s.argv()[0] }

func (s *CommandSender) argv() []string {
	if len(s.Argv) == 0 {
		return DefaultCommand
	}
	return s.Argv
}

func (s *CommandSender) socket() string {
	if s.Socket == "" {
		return DefaultSocket
	}
	return s.Socket
}

// Check reports whether the tool can be found.
func (s *CommandSender) Check() error {
	name := s.argv()[0]
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%w: %s", ErrInjectorMissing, name)
	}
	return nil
}

func (s *CommandSender) Send(ctx context.Context, events []KeyEvent) error {
	argv := s.argv()
	args := append(append([]string{}, argv[1:]...), Tokens(events)...)

	cmd := exec.CommandContext(ctx, argv[0], args...)
	cmd.Env = append(os.Environ(), "YDOTOOL_SOCKET="+s.socket())
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrInjectorMissing, argv[0])
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &CommandError{
			Argv:     argv,
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}
	return fmt.Errorf("running %s: %w", argv[0], err)
}
