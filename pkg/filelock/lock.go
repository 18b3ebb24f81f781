// Package filelock provides a cross-process advisory lock on a sibling lock
// file with a bounded wait.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrTimeout is returned when the lock could not be acquired before the
	// wait bound elapsed.
	ErrTimeout = errors.New("filelock: timed out waiting for lock")

	errWouldBlock = errors.New("filelock: lock held elsewhere")
)

const (
	minPoll = 25 * time.Millisecond
	maxPoll = 500 * time.Millisecond
)

// Lock is a held advisory lock. Release must be called on every exit path.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes an exclusive lock on path, creating the file when missing.
// It tries once without blocking, then polls with a capped backoff until the
// lock is free, timeout elapses, or ctx ends.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	f, err := tryAcquire(path)
	if err == nil {
		return &Lock{path: path, file: f}, nil
	}
	if !errors.Is(err, errWouldBlock) {
		return nil, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	poll := minPoll
	timer := time.NewTimer(poll)
	defer timer.Stop()

	for {
		select {
		case <-lockCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w after %v: %s", ErrTimeout, timeout, path)
		case <-timer.C:
			f, err := tryAcquire(path)
			if err == nil {
				return &Lock{path: path, file: f}, nil
			}
			if !errors.Is(err, errWouldBlock) {
				return nil, err
			}
			poll *= 2
			if poll > maxPoll {
				poll = maxPoll
			}
			timer.Reset(poll)
		}
	}
}

// Release drops the lock. Calling it more than once is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := release(l.file, l.path)
	l.file = nil
	return err
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}
