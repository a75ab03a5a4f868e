package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/liteforge"
	"github.com/aretw0/liteforge/internal/config"
	"github.com/aretw0/liteforge/pkg/adapters/redis"
	"github.com/aretw0/liteforge/pkg/manifest"
)

// ForgeOptions selects the lock policy of a Forge.
type ForgeOptions struct {
	// RejectWhenBusy makes concurrent builds fail fast instead of waiting.
	RejectWhenBusy bool
}

// CreateForge wires a Forge from the resolved configuration.
// The returned close function releases the Redis connection when one was opened.
func CreateForge(ctx context.Context, cfg *config.Config, logger *slog.Logger, fo ForgeOptions) (*liteforge.Forge, func() error, error) {
	opts, err := cfg.ForgeOptions()
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts,
		liteforge.WithLogger(logger),
		liteforge.WithRejectWhenBusy(fo.RejectWhenBusy),
	)

	closer := func() error { return nil }
	if cfg.RedisAddr != "" {
		locker, err := redis.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("error connecting lock backend: %w", err)
		}
		logger.Debug("Distributed project lock enabled", "addr", cfg.RedisAddr)
		opts = append(opts, liteforge.WithLocker(locker))
		closer = locker.Close
	}

	forge, err := liteforge.New(cfg.Project, opts...)
	if err != nil {
		_ = closer()
		return nil, nil, fmt.Errorf("error opening template project: %w", err)
	}
	return forge, closer, nil
}

// CreateManifestStore builds and initializes the manifest store.
// A malformed manifest file is logged and the defaults are served.
func CreateManifestStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) *manifest.Store {
	opts := []manifest.StoreOption{manifest.WithStoreLogger(logger)}
	if cfg.ManifestFile != "" {
		opts = append(opts, manifest.WithFile(cfg.ManifestFile))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, manifest.WithBaseURL(cfg.BaseURL))
	}
	store := manifest.NewStore(manifest.Default(), opts...)
	if err := store.Init(ctx); err != nil {
		logger.Warn("Serving default manifest", "err", err)
	}
	return store
}
