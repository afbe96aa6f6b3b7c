// Package lockfile implements the advisory per-directory write lock used to
// serialize job-directory writers across orchestrator processes sharing a
// filesystem. The lock is a marker file inside the job directory; it
// coordinates external actors, not goroutines.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// MarkerName is the lock marker file created inside a locked directory.
const MarkerName = "ingot.lock"

// PollInterval is how often WaitToWrite re-checks a held lock.
const PollInterval = 250 * time.Millisecond

// ErrLocked reports an attempt to lock a directory whose marker already
// exists. Relocking is an error rather than a no-op so that a double
// acquisition by the same process is caught instead of silently collapsing
// two critical sections into one.
var ErrLocked = errors.New("lockfile: directory already locked")

func markerPath(dir string) string {
	return filepath.Join(dir, MarkerName)
}

// IsLocked reports whether the directory's lock marker exists.
func IsLocked(dir string) bool {
	_, err := os.Stat(markerPath(dir))
	return err == nil
}

// Lock atomically creates the marker. Returns ErrLocked when the marker is
// already present.
func Lock(dir string) error {
	f, err := os.OpenFile(markerPath(dir), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrLocked, dir)
		}
		return fmt.Errorf("lockfile: lock %s: %w", dir, err)
	}
	fmt.Fprintf(f, "locked %s\n", time.Now().Format(time.RFC3339))
	return f.Close()
}

// Unlock removes the marker. Unlocking an unlocked directory is a no-op.
func Unlock(dir string) error {
	err := os.Remove(markerPath(dir))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("lockfile: unlock %s: %w", dir, err)
	}
	return nil
}

// WaitToWrite blocks until the directory's lock clears, then takes it. The
// context bounds the wait. On a creation race with another waiter the loop
// simply re-polls.
func WaitToWrite(ctx context.Context, dir string) error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		err := Lock(dir)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrLocked) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("lockfile: waiting for %s: %w", dir, ctx.Err())
		case <-ticker.C:
		}
	}
}
