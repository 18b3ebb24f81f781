//go:build !unix

package filelock

import (
	"errors"
	"fmt"
	"os"
)

// Without flock the lock is the existence of the file, created exclusively.
func tryAcquire(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err == nil {
		return f, nil
	}
	if errors.Is(err, os.ErrExist) {
		return nil, errWouldBlock
	}
	return nil, fmt.Errorf("open lock file: %w", err)
}

func release(f *os.File, path string) error {
	closeErr := f.Close()
	removeErr := os.Remove(path)
	return errors.Join(closeErr, removeErr)
}
