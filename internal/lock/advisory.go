// Package lock provides PostgreSQL advisory locking functionality for
// subsetdb, guarding against two instances extracting the same profile
// concurrently against the same source database.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// ErrLockTimeout is returned when lock acquisition times out because
// another instance is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Common timeout values for lock acquisition (in seconds).
const (
	// TimeoutImmediate returns immediately if lock cannot be acquired (no wait).
	TimeoutImmediate = 0

	// TimeoutShort is suitable for fast-failing duplicate-run detection.
	TimeoutShort = 1

	// TimeoutMedium provides a reasonable wait for transient conflicts.
	TimeoutMedium = 10

	// TimeoutLong allows extended waiting for lock acquisition.
	TimeoutLong = 60
)

// pollInterval is how often AcquireLock retries pg_try_advisory_lock while
// waiting out a timeout; Postgres has no built-in waiting variant of
// pg_try_advisory_lock, unlike MySQL's GET_LOCK(name, timeout).
const pollInterval = 100 * time.Millisecond

// AdvisoryLock represents a PostgreSQL session-level advisory lock,
// identified by a bigint key derived from a human-readable name. The lock
// is automatically released when the session's connection closes, or
// explicitly via ReleaseLock.
type AdvisoryLock struct {
	db       *sql.DB
	lockName string
	lockKey  int64
	held     bool
}

// NewAdvisoryLock creates a new advisory lock with the given name. The
// lock is not acquired until AcquireLock is called.
func NewAdvisoryLock(db *sql.DB, lockName string) *AdvisoryLock {
	return &AdvisoryLock{
		db:       db,
		lockName: lockName,
		lockKey:  lockKeyFromName(lockName),
		held:     false,
	}
}

// lockKeyFromName hashes a lock name to the bigint key pg_advisory_lock
// requires, since Postgres advisory locks are keyed by number, not string.
func lockKeyFromName(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}

// AcquireLock attempts to acquire the advisory lock, polling
// pg_try_advisory_lock until it succeeds or timeoutSeconds elapses.
// timeoutSeconds == 0 tries exactly once, without waiting.
func (a *AdvisoryLock) AcquireLock(ctx context.Context, timeoutSeconds int) (bool, error) {
	if a.held {
		return true, nil
	}

	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	for {
		acquired, err := a.tryAcquireOnce(ctx)
		if err != nil {
			return false, err
		}
		if acquired {
			a.held = true
			return true, nil
		}
		if timeoutSeconds <= 0 || !time.Now().Before(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (a *AdvisoryLock) tryAcquireOnce(ctx context.Context) (bool, error) {
	var acquired bool
	err := a.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", a.lockKey).Scan(&acquired)
	if err != nil {
		return false, fmt.Errorf("failed to execute pg_try_advisory_lock: %w", err)
	}
	return acquired, nil
}

// ReleaseLock releases the advisory lock. Returns true if the lock was
// released, false if it was not held by this session.
func (a *AdvisoryLock) ReleaseLock(ctx context.Context) (bool, error) {
	if !a.held {
		return false, nil
	}

	var released bool
	err := a.db.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", a.lockKey).Scan(&released)
	if err != nil {
		return false, fmt.Errorf("failed to execute pg_advisory_unlock: %w", err)
	}

	a.held = false
	if !released {
		return false, fmt.Errorf("pg_advisory_unlock reported lock %q was not held by this session", a.lockName)
	}
	return true, nil
}

// IsHeld returns true if this lock is currently held by this instance.
func (a *AdvisoryLock) IsHeld() bool {
	return a.held
}

// LockName returns the name of the advisory lock.
func (a *AdvisoryLock) LockName() string {
	return a.lockName
}

// TryAcquire attempts to acquire the lock immediately without waiting.
func (a *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	return a.AcquireLock(ctx, TimeoutImmediate)
}

// AcquireOrFail attempts to acquire the lock with TimeoutShort, returning
// ErrLockTimeout if another instance is holding it.
func (a *AdvisoryLock) AcquireOrFail(ctx context.Context) error {
	acquired, err := a.AcquireLock(ctx, TimeoutShort)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}
	return nil
}

// GenerateProfileLockName creates a consistent lock name for an extraction
// profile run: "subsetdb:profile:{profileName}", sanitized to avoid
// surprising characters in diagnostics.
func GenerateProfileLockName(profileName string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, profileName)

	return fmt.Sprintf("subsetdb:profile:%s", sanitized)
}

// NewProfileLock creates an advisory lock scoped to a specific extraction
// profile, using GenerateProfileLockName.
func NewProfileLock(db *sql.DB, profileName string) *AdvisoryLock {
	return NewAdvisoryLock(db, GenerateProfileLockName(profileName))
}

// IsProfileRunning checks whether a specific profile is currently running
// by attempting, and immediately releasing, its lock. Not atomic: the
// state may change immediately after this returns.
func IsProfileRunning(ctx context.Context, db *sql.DB, profileName string) (bool, error) {
	l := NewProfileLock(db, profileName)

	acquired, err := l.TryAcquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check if profile %q is running: %w", profileName, err)
	}
	if acquired {
		if _, releaseErr := l.ReleaseLock(ctx); releaseErr != nil {
			_ = releaseErr // lock also auto-releases when the connection closes
		}
		return false, nil
	}
	return true, nil
}

// WithLock executes fn while holding the advisory lock, releasing it on
// every exit path including panic.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeoutSeconds int, fn func() error) error {
	acquired, err := a.AcquireLock(ctx, timeoutSeconds)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, releaseErr := a.ReleaseLock(releaseCtx); releaseErr != nil {
			_ = releaseErr
		}
	}()

	return fn()
}

// WithProfileLock executes fn while holding a profile-specific advisory
// lock, with TimeoutShort fast-fail semantics.
func WithProfileLock(ctx context.Context, db *sql.DB, profileName string, fn func() error) error {
	l := NewProfileLock(db, profileName)
	return l.WithLock(ctx, TimeoutShort, fn)
}
