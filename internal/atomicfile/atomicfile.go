package atomicfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	lockWaitTimeout  = 5 * time.Second
	lockStaleAfter   = 30 * time.Second
	lockPollInterval = 50 * time.Millisecond
)

var ErrLockTimeout = errors.New("timed out waiting for file lock")

// Write replaces path with contents. Readers observe either the old or the new
// contents, never a partial write.
func Write(path string, contents []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmpPath, err := writeTemp(dir, filepath.Base(path), contents, perm)
	if tmpPath != "" {
		defer func() { _ = os.Remove(tmpPath) }()
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	syncDir(dir)
	return nil
}

// writeTemp writes contents to a synced sibling temp file and returns its
// path, which the caller removes if it is still there.
func writeTemp(dir, base string, contents []byte, perm os.FileMode) (string, error) {
	f, err := os.CreateTemp(dir, "."+base+".tmp.*")
	if err != nil {
		return "", err
	}

	writeErr := errors.Join(
		f.Chmod(perm),
		writeAll(f, contents),
		f.Sync(),
	)
	closeErr := f.Close()
	return f.Name(), errors.Join(writeErr, closeErr)
}

func writeAll(f *os.File, contents []byte) error {
	_, err := f.Write(contents)
	return err
}

// syncDir flushes the rename to disk where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// WithLock runs fn while holding lockPath, an O_EXCL lock file shared with
// other processes. Locks older than lockStaleAfter are taken over.
func WithLock(lockPath string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o700); err != nil {
		return err
	}

	deadline := time.Now().Add(lockWaitTimeout)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, _ = fmt.Fprintf(f, "pid=%d time=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			_ = f.Close()
			defer func() { _ = os.Remove(lockPath) }()
			return fn()
		}
		if !errors.Is(err, os.ErrExist) {
			return err
		}

		info, statErr := os.Stat(lockPath)
		if statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			_ = os.Remove(lockPath)
			continue
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, lockPath)
		}
		time.Sleep(lockPollInterval)
	}
}
