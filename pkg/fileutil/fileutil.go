package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
)

// GetFileExtension extracts the file extension from a path, or empty string if none
func GetFileExtension(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	// Remove the leading dot
	return strings.TrimPrefix(ext, ".")
}

// TrimExtension returns path without its final extension.
func TrimExtension(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// EnsureDir check if a given directory plus the following path exist, then create one if not
func EnsureDir(dir string, path ...string) failure.ClassifiedError {
	targetPath := []string{dir}
	targetPath = append(targetPath, path...)

	target := filepath.Join(targetPath...)
	if err := os.MkdirAll(target, 0755); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
			Err:       err,
		}
	}
	return nil
}

// AtomicWriteFile writes data to tmpPath, fsyncs it, then renames it over
// path. Readers of path see either the previous content or the new content,
// never a partial write. tmpPath must live on the same filesystem as path.
func AtomicWriteFile(path, tmpPath string, data []byte, perm os.FileMode) failure.ClassifiedError {
	if err := WriteSynced(tmpPath, data, perm); err != nil {
		os.Remove(tmpPath)
		return &FileError{
			Message: fmt.Sprintf("write temp file %s: %v", tmpPath, err),
			Cause:   ErrCauseWriteFailure,
			Err:     err,
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &FileError{
			Message: fmt.Sprintf("rename %s to %s: %v", tmpPath, path, err),
			Cause:   ErrCauseWriteFailure,
			Err:     err,
		}
	}
	return nil
}

// WriteSynced writes data to path and fsyncs it before closing.
func WriteSynced(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CopyFile copies src to dst through a synced temp file next to dst, so dst
// is never left half-written.
func CopyFile(src, dst string) failure.ClassifiedError {
	in, err := os.Open(src)
	if err != nil {
		return &FileError{
			Message: fmt.Sprintf("open %s: %v", src, err),
			Cause:   ErrCauseReadFailure,
			Err:     err,
		}
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return &FileError{
			Message: fmt.Sprintf("read %s: %v", src, err),
			Cause:   ErrCauseReadFailure,
			Err:     err,
		}
	}

	return AtomicWriteFile(dst, dst+".tmp", data, 0644)
}
