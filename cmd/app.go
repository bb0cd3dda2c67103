package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/listado/internal/cache"
	"github.com/lepinkainen/listado/internal/config"
	"github.com/lepinkainen/listado/internal/metrics"
	"github.com/lepinkainen/listado/internal/mirror"
	"github.com/lepinkainen/listado/internal/remote"
	"github.com/lepinkainen/listado/internal/store"
)

// app wires the synchronizer to its store and remote source for one command
type app struct {
	settings config.Settings
	store    *store.SQLiteStore
	cache    *cache.CacheDB
	sync     *mirror.Synchronizer
	metrics  *metrics.Metrics
}

func newApp(m *metrics.Metrics) (*app, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	clientOpts, err := remote.FromSettings(settings)
	if err != nil {
		return nil, err
	}
	client := remote.NewClient(settings.RemoteURL, clientOpts...)

	// the mirror still works without the payload cache
	payloadCache, err := cache.Open(settings.CacheDBFile)
	if err != nil {
		slog.Warn("Payload cache unavailable, fetching without it", "database", settings.CacheDBFile, "error", err)
		payloadCache = nil
	}
	source := remote.NewCachedSource(client, payloadCache, settings.CacheTTL)

	st := store.NewSQLiteStore(settings.StoreDBFile)
	opts := append(mirror.FromSettings(settings), mirror.WithMetrics(m))
	slog.Debug("Mirror configured", "remote", client.URL(), "store", st.Path(), "cache", settings.CacheDBFile)

	return &app{
		settings: settings,
		store:    st,
		cache:    payloadCache,
		sync:     mirror.New(st, source, opts...),
		metrics:  m,
	}, nil
}

func (a *app) Close() error {
	var errs []error
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close cache: %w", err))
		}
	}
	return errors.Join(errs...)
}

// withApp builds the app, runs fn and closes it.
func withApp(m *metrics.Metrics, fn func(*app) error) (err error) {
	a, err := newApp(m)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	return fn(a)
}

func logLoadResult(ctx context.Context, action string, result mirror.LoadResult) {
	switch {
	case result.Degraded:
		slog.WarnContext(ctx, "Remote listing unavailable, using local store", "action", action, "records", result.Count, "error", result.FetchErr)
	case result.FromCache:
		slog.InfoContext(ctx, "Local store is up to date", "action", action, "records", result.Count)
	default:
		slog.InfoContext(ctx, "Local store synchronized", "action", action, "records", result.Count)
	}
}
