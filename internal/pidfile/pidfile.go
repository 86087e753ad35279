// Package pidfile guards against running two relays with the same PID file.
//
// The file is locked with flock(2) for the life of the process and holds the
// process ID. The lock, not the file's existence, decides ownership, so a
// file left behind by a crashed relay does not block a restart.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds the PID file lock.
var ErrLocked = errors.New("pidfile: locked by another process")

// PIDFile is a held PID file lock.
type PIDFile struct {
	path string
	lock *flock.Flock
}

// Acquire locks path without blocking and writes the current PID to it.
//
// Returns:
//   - *PIDFile: the held lock; call Release on shutdown
//   - error: ErrLocked (with the holder's PID when readable) if another
//     process holds the lock, or the underlying I/O error
func Acquire(path string) (*PIDFile, error) {
	lock := flock.New(path)

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking pid file %s: %w", path, err)
	}
	if !locked {
		if pid, err := Read(path); err == nil {
			return nil, fmt.Errorf("%w: %s held by pid %d", ErrLocked, path, pid)
		}
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("writing pid file %s: %w", path, err)
	}

	return &PIDFile{path: path, lock: lock}, nil
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Release removes the PID file and drops the lock. Safe to call on nil.
func (p *PIDFile) Release() error {
	if p == nil || p.lock == nil {
		return nil
	}
	removeErr := os.Remove(p.path)
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	unlockErr := p.lock.Unlock()
	p.lock = nil
	return errors.Join(removeErr, unlockErr)
}

// Read returns the PID stored in path.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing pid file %s: %w", path, err)
	}
	return pid, nil
}
