//go:build unix

// Package eventlog's file locking is modeled on bd's
// internal/lockfile/lock_unix.go, trimmed to the two modes the append-log
// contract actually needs: a blocking exclusive lock for writers and a
// blocking shared lock for readers. bd additionally offers a non-blocking
// variant for its daemon singleton lock; crit's per-review log never
// needs to fail fast on contention, so that variant is dropped.
package eventlog

import (
	"os"

	"golang.org/x/sys/unix"
)

func lockExclusive(f *os.File) (release func() error, err error) {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return nil, err
	}
	return func() error { return unix.Flock(int(f.Fd()), unix.LOCK_UN) }, nil
}

func lockShared(f *os.File) (release func() error, err error) {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		return nil, err
	}
	return func() error { return unix.Flock(int(f.Fd()), unix.LOCK_UN) }, nil
}
