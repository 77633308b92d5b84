package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// lockPollInterval is how often a blocked file lock is retried.
const lockPollInterval = 25 * time.Millisecond

// keyLock is a context-aware mutex shared by every waiter on one key.
type keyLock struct {
	sem  chan struct{}
	refs int
}

// Serializer runs functions one at a time per key.
//
// The zero value is not usable; create one with NewSerializer.
type Serializer struct {
	mu    sync.Mutex
	locks map[string]*keyLock

	// lockPath maps a key to an advisory lock file. nil or "" disables
	// cross-process locking for that key.
	lockPath func(key string) string
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithLockFile makes every Do also hold an exclusive flock on the file
// path returns for the key, so separate processes are serialized too.
func WithLockFile(path func(key string) string) Option {
	return func(s *Serializer) { s.lockPath = path }
}

// NewSerializer returns an empty Serializer.
func NewSerializer(opts ...Option) *Serializer {
	s := &Serializer{locks: make(map[string]*keyLock)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Do waits until no other function holds key, then runs fn. Waiting stops
// with the context's error if ctx is done first; fn is then never called.
func (s *Serializer) Do(ctx context.Context, key string, fn func(ctx context.Context) error) (err error) {
	l := s.acquire(key)
	defer s.release(key, l)

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()

	if s.lockPath != nil {
		if path := s.lockPath(key); path != "" {
			unlock, lockErr := lockFile(ctx, path)
			if lockErr != nil {
				return fmt.Errorf("lock %s: %w", path, lockErr)
			}
			defer func() {
				if unlockErr := unlock(); unlockErr != nil {
					err = errors.Join(err, fmt.Errorf("unlock %s: %w", path, unlockErr))
				}
			}()
		}
	}

	return fn(ctx)
}

// Len returns the number of keys with a running or waiting function.
func (s *Serializer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

// acquire returns the lock for key, registering the caller as a user.
func (s *Serializer) acquire(key string) *keyLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	return l
}

// release drops the caller's reference and forgets idle keys.
func (s *Serializer) release(key string, l *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}
