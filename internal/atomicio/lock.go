// Package atomicio implements the two primitives every durable file in
// this repo is built on: an advisory sibling lock file, and a
// write-to-temp-then-rename so readers never observe a partial write.
package atomicio

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// StaleThreshold is how old a lock file's recorded timestamp must be
// before a waiting acquirer treats it as abandoned and deletes it.
const StaleThreshold = 5 * time.Second

// PollInterval is how often a synchronous acquirer re-checks a held lock.
const PollInterval = 10 * time.Millisecond

// AcquireTimeout is the total time a synchronous acquirer will wait
// before giving up with ErrLockTimeout. A var, not a const, so tests can
// shrink it rather than waiting out the real 5s budget.
var AcquireTimeout = 5 * time.Second

// ErrLockTimeout is returned when a lock could not be acquired within
// AcquireTimeout. Per §7 this propagates to the caller rather than being
// silently retried.
var ErrLockTimeout = errors.New("atomicio: lock acquisition timed out")

// Lock represents a held advisory lock on target+".lock". Release must
// be called exactly once.
type Lock struct {
	path string
}

// Release deletes the lock file. Safe to call even if the file was
// already removed out from under it (e.g. by a stale-lock eviction from
// another process); that is treated as success.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "atomicio: release lock %s", l.path)
	}
	return nil
}

// Acquire takes the advisory lock sibling to target, creating it
// exclusively. If an existing lock is older than StaleThreshold it is
// evicted and acquisition retried immediately. Blocks, polling every
// PollInterval, until AcquireTimeout elapses, at which point it returns
// ErrLockTimeout.
func Acquire(lockPath string) (*Lock, error) {
	deadline := time.Now().Add(AcquireTimeout)
	for {
		if err := tryCreate(lockPath); err == nil {
			return &Lock{path: lockPath}, nil
		} else if !os.IsExist(err) {
			return nil, errors.Wrapf(err, "atomicio: create lock %s", lockPath)
		}

		if evictIfStale(lockPath) {
			continue // retry immediately, no need to sleep through the poll interval
		}

		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		time.Sleep(PollInterval)
	}
}

// tryCreate creates lockPath exclusively (fails if it already exists)
// and writes the current epoch-ms timestamp as its body.
func tryCreate(lockPath string) error {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 10))
	return err
}

// evictIfStale removes lockPath if its recorded acquisition timestamp is
// older than StaleThreshold (or unparsable, which is itself a sign of a
// half-written lock from a crashed holder). Returns true if it evicted
// the file, meaning the caller should retry acquisition immediately.
func evictIfStale(lockPath string) bool {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return false // lock vanished or unreadable; let the normal retry loop handle it
	}

	ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	age := time.Duration(0)
	stale := err != nil
	if err == nil {
		age = time.Since(time.UnixMilli(ms))
		stale = age > StaleThreshold
	}
	if !stale {
		return false
	}

	if rmErr := os.Remove(lockPath); rmErr != nil && !os.IsNotExist(rmErr) {
		return false
	}
	return true
}

// lockAge is exposed for tests that want to assert on staleness math
// without sleeping StaleThreshold in real time.
func lockAge(lockPath string) (time.Duration, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return 0, err
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("atomicio: malformed lock body %q", data)
	}
	return time.Since(time.UnixMilli(ms)), nil
}
