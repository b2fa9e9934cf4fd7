// Package execx wraps os/exec for subprocess-heavy callers: streamed
// line output, captured stderr tails, and context cancellation.
package execx

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// LineFunc receives one line of subprocess output at a time. May be nil.
type LineFunc func(line string)

// Runner executes external commands. The zero value is ready to use.
// Dir sets the working directory for every command.
type Runner struct {
	Dir string
	// Env entries appended to the inherited environment.
	Env []string
}

// tailBuffer keeps the last capacity bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
	cap int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf.Write(p)
	if t.cap > 0 && t.buf.Len() > t.cap {
		b := t.buf.Bytes()
		trimmed := make([]byte, t.cap)
		copy(trimmed, b[len(b)-t.cap:])
		t.buf.Reset()
		t.buf.Write(trimmed)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return t.buf.String() }

// Run executes name with args, streaming stdout and stderr line by line to
// onLine. On failure the returned error carries the last 4 KiB of stderr,
// which is where tools like the llama.cpp converter print their reason.
func (r *Runner) Run(ctx context.Context, onLine LineFunc, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	stderrTail := &tailBuffer{cap: 4096}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	done := make(chan struct{})
	go func() {
		streamLines(stdout, onLine)
		close(done)
	}()
	streamLines(io.TeeReader(stderr, stderrTail), onLine)
	<-done

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if tail := strings.TrimSpace(stderrTail.String()); tail != "" {
			return &ExitError{Cmd: name, Err: err, Stderr: tail}
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Output executes name with args and returns trimmed stdout.
func (r *Runner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			return "", &ExitError{Cmd: name, Err: err, Stderr: tail}
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func streamLines(r io.Reader, onLine LineFunc) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.Scan() {
		if onLine != nil {
			onLine(s.Text())
		}
	}
}

// ExitError is a subprocess failure with its captured stderr tail.
type ExitError struct {
	Cmd    string
	Err    error
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Cmd, e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }

// LookPath reports whether name resolves to an executable on PATH.
func LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
