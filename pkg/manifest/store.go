package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/liteforge/internal/logging"
)

// ErrNotReady is returned by Update when Init has not completed.
var ErrNotReady = errors.New("manifest store not initialized")

// Listener receives every new snapshot.
type Listener func(Manifest)

// Store owns the current manifest snapshot.
// Init loads persisted overrides once; Get never blocks.
type Store struct {
	mu       sync.RWMutex
	defaults Manifest
	current  Manifest
	path     string
	baseURL  string
	logger   *slog.Logger

	listeners map[int]Listener
	nextID    int

	ready     chan struct{}
	readyOnce sync.Once
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFile persists snapshots to path. The format follows the extension (.yaml, .yml or .json).
func WithFile(path string) StoreOption {
	return func(s *Store) {
		s.path = path
	}
}

// WithBaseURL resolves relative splash image paths in updates against url.
func WithBaseURL(url string) StoreOption {
	return func(s *Store) {
		s.baseURL = url
	}
}

// WithStoreLogger sets the store logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store holding defaults until Init runs.
func NewStore(defaults Manifest, opts ...StoreOption) *Store {
	s := &Store{
		defaults:  defaults.Clone(),
		current:   defaults.Clone(),
		logger:    logging.NewNop(),
		listeners: make(map[int]Listener),
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init merges the persisted overrides over the defaults and marks the store ready.
// A missing file is not an error. A malformed file leaves the defaults in place,
// still marks the store ready and returns the error.
func (s *Store) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.markReady()

	if s.path == "" {
		return nil
	}
	overrides, err := s.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		s.logger.Warn("Failed to load manifest", "path", s.path, "err", err)
		return err
	}
	loaded, err := Apply(s.defaults, overrides)
	if err != nil {
		s.logger.Warn("Ignoring persisted manifest", "path", s.path, "err", err)
		return err
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	s.logger.Debug("Manifest loaded", "path", s.path)
	return nil
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() {
		close(s.ready)
		s.notify(s.Get())
	})
}

// Ready is closed once Init has completed.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Get returns the current snapshot.
func (s *Store) Get() Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Update merges patch over the current snapshot, persists the result and notifies listeners.
// The store is left unchanged when the merged snapshot is invalid or cannot be saved.
func (s *Store) Update(patch map[string]any) (Manifest, error) {
	select {
	case <-s.ready:
	default:
		return Manifest{}, ErrNotReady
	}

	s.mu.Lock()
	next, err := Apply(s.current, s.resolveImage(patch))
	if err != nil {
		s.mu.Unlock()
		return Manifest{}, err
	}
	if err := s.save(next); err != nil {
		s.mu.Unlock()
		return Manifest{}, err
	}
	s.current = next
	s.mu.Unlock()

	s.notify(next.Clone())
	return next.Clone(), nil
}

// Subscribe registers fn for every future snapshot and returns its unsubscribe function.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify(m Manifest) {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(m.Clone())
	}
}

func (s *Store) resolveImage(patch map[string]any) map[string]any {
	splash, ok := patch["splash"].(map[string]any)
	if !ok || s.baseURL == "" {
		return patch
	}
	image, ok := splash["image"].(string)
	if !ok || image == "" {
		return patch
	}

	resolvedSplash := make(map[string]any, len(splash))
	for k, v := range splash {
		resolvedSplash[k] = v
	}
	resolvedSplash["image"] = ResolveImage(s.baseURL, image)

	resolved := make(map[string]any, len(patch))
	for k, v := range patch {
		resolved[k] = v
	}
	resolved["splash"] = resolvedSplash
	return resolved
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (s *Store) load() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if isYAML(s.path) {
		err = yaml.Unmarshal(data, &out)
	} else {
		err = json.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidManifest, filepath.Base(s.path), err)
	}
	return out, nil
}

// save writes the snapshot atomically: temp file in the same directory, fsync, rename.
func (s *Store) save(m Manifest) error {
	if s.path == "" {
		return nil
	}
	var (
		data []byte
		err  error
	)
	if isYAML(s.path) {
		data, err = yaml.Marshal(m)
	} else {
		data, err = json.MarshalIndent(m, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure manifest directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "tmp-manifest-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace manifest file: %w", err)
	}
	return nil
}

// Save writes m to path using the same format rules as a Store.
func Save(path string, m Manifest) error {
	return (&Store{path: path}).save(m)
}

// Load reads the overrides at path and merges them over base.
func Load(path string, base Manifest) (Manifest, error) {
	overrides, err := (&Store{path: path}).load()
	if err != nil {
		return Manifest{}, err
	}
	return Apply(base, overrides)
}
