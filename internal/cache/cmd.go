package cache

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// ClearCmd represents the cache clear subcommand
type ClearCmd struct {
	Expired bool `help:"Only remove entries older than cache.ttl"`
}

func (c *ClearCmd) Run() error {
	cacheDB := viper.GetString("cache.dbfile")

	slog.Info("Clearing payload cache", "database", cacheDB, "expired_only", c.Expired)

	cacheInstance, err := Open(cacheDB)
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	defer func() { _ = cacheInstance.Close() }()

	var rowsDeleted int64
	if c.Expired {
		ttl, err := ttlFromConfig()
		if err != nil {
			return err
		}
		rowsDeleted, err = cacheInstance.ClearExpired(PayloadTable, ttl)
		if err != nil {
			return fmt.Errorf("failed to clear expired cache: %w", err)
		}
	} else {
		rowsDeleted, err = cacheInstance.ClearAll(PayloadTable)
		if err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}

	slog.Info("Cache cleared", "rows_deleted", rowsDeleted)
	return nil
}

func ttlFromConfig() (time.Duration, error) {
	raw := viper.GetString("cache.ttl")
	if raw == "" {
		return DefaultTTL, nil
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid cache.ttl %q: %w", raw, err)
	}
	return ttl, nil
}
