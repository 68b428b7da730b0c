package scm

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// runner invokes a backend CLI as a subprocess, never shells through
// /bin/sh, and retries a narrow class of known-transient failures (git's
// index.lock contention when another process briefly holds the repo
// lock) rather than surfacing them to the caller immediately.
type runner struct {
	bin  string
	kind Kind
	dir  string
}

// run executes bin with args in dir and returns trimmed stdout. Every
// exported SCM method funnels through here so retry and error-wrapping
// stay in one place.
func (r runner) run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	var lastErr error

	operation := func() error {
		stdout.Reset()
		stderr.Reset()
		cmd := exec.CommandContext(ctx, r.bin, args...)
		cmd.Dir = r.dir
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		err := cmd.Run()
		if err == nil {
			return nil
		}
		lastErr = &CommandFailed{Backend: r.kind, Args: args, Err: errWithStderr(err, stderr.String())}
		if isTransient(stderr.String()) {
			return lastErr
		}
		return backoff.Permanent(lastErr)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 50 * time.Millisecond
	eb.MaxInterval = 400 * time.Millisecond
	b := backoff.WithMaxRetries(eb, 4)

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", lastErr
	}
	return strings.TrimSpace(stdout.String()), nil
}

func errWithStderr(err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return err
	}
	return &stderrError{msg: stderr, cause: err}
}

type stderrError struct {
	msg   string
	cause error
}

func (e *stderrError) Error() string { return e.msg }
func (e *stderrError) Unwrap() error { return e.cause }

// isTransient reports whether a failure is worth a bounded retry. Only
// git's lock-file contention qualifies; everything else (bad ref, bad
// path, missing repo) is permanent and should fail fast.
func isTransient(stderr string) bool {
	return strings.Contains(stderr, "index.lock") ||
		strings.Contains(stderr, "Unable to create") && strings.Contains(stderr, ".lock")
}
