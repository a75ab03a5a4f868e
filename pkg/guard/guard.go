// Package guard serializes pipeline runs that target the same template project.
//
// Rewrites mutate a fixed-path tree, so two builds against one project must never
// interleave. Manager keeps one reference-counted slot per project key and can
// additionally hold a ports.DistributedLocker lease when several processes share the tree.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/liteforge/internal/logging"
	"github.com/aretw0/liteforge/pkg/domain"
	"github.com/aretw0/liteforge/pkg/ports"
)

// DefaultTTL bounds a distributed lease. It outlives the default build timeout.
const DefaultTTL = 15 * time.Minute

// ReleaseFunc gives the project back. Calling it more than once is a no-op.
type ReleaseFunc func()

// lockEntry holds the slot and the reference count.
type lockEntry struct {
	slot chan struct{}
	refs int
}

// Manager hands out exclusive access to projects.
// It uses Reference Counting to garbage collect unused slots.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*lockEntry

	locker ports.DistributedLocker
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithTTL sets the lease duration of the distributed lock.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a lock manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:  make(map[string]*lockEntry),
		ttl:    DefaultTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates an entry and increments its reference count.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{slot: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Acquire blocks until key is free or ctx ends.
func (m *Manager) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	entry := m.acquire(key)
	select {
	case entry.slot <- struct{}{}:
	case <-ctx.Done():
		m.release(key)
		return nil, ctx.Err()
	}

	var unlock ports.UnlockFunc
	if m.locker != nil {
		var err error
		unlock, err = m.locker.Lock(ctx, key, m.ttl)
		if err != nil {
			<-entry.slot
			m.release(key)
			return nil, fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
	}
	return m.releaser(ctx, key, entry, unlock), nil
}

// TryAcquire fails with domain.ErrBuildInProgress instead of waiting.
func (m *Manager) TryAcquire(ctx context.Context, key string) (ReleaseFunc, error) {
	entry := m.acquire(key)
	select {
	case entry.slot <- struct{}{}:
	default:
		m.release(key)
		return nil, domain.ErrBuildInProgress
	}

	var unlock ports.UnlockFunc
	if m.locker != nil {
		var (
			ok  bool
			err error
		)
		unlock, ok, err = m.locker.TryLock(ctx, key, m.ttl)
		if err != nil || !ok {
			<-entry.slot
			m.release(key)
			if err != nil {
				return nil, fmt.Errorf("failed to acquire distributed lock: %w", err)
			}
			return nil, domain.ErrBuildInProgress
		}
	}
	return m.releaser(ctx, key, entry, unlock), nil
}

func (m *Manager) releaser(ctx context.Context, key string, entry *lockEntry, unlock ports.UnlockFunc) ReleaseFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			if unlock != nil {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
						"project", key,
						"err", err,
					)
				}
			}
			<-entry.slot
			m.release(key)
		})
	}
}

// Busy reports whether a build currently holds key in this process.
func (m *Manager) Busy(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[key]
	return ok && len(entry.slot) > 0
}

// WithLock executes fn while holding key, waiting for it if needed.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	release, err := m.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// TryWithLock executes fn while holding key, or fails with domain.ErrBuildInProgress.
func (m *Manager) TryWithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	release, err := m.TryAcquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}
