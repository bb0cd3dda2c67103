// Package cache is a short-lived key/value cache with a memory layer in
// front of a SQLite table. Entries expire after a TTL.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultTTL is the default lifetime of a cached payload (one minute)
const DefaultTTL = time.Minute

// FetchFunc represents a function that fetches data from an external source
type FetchFunc[T any] func() (T, error)

type memEntry struct {
	data     string
	cachedAt time.Time
}

// CacheDB manages the SQLite database connection and the memory layer
type CacheDB struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
	mem  map[string]memEntry
	now  func() time.Time
}

// Open creates a CacheDB and initializes every cache table
func Open(dbPath string) (*CacheDB, error) {
	c, err := NewCacheDB(dbPath)
	if err != nil {
		return nil, err
	}
	for _, schema := range AllCacheSchemas {
		if err := c.CreateTable(schema); err != nil {
			return nil, errors.Join(fmt.Errorf("failed to create cache table: %w", err), c.Close())
		}
	}
	return c, nil
}

// NewCacheDB creates a new CacheDB instance and opens the database connection
func NewCacheDB(dbPath string) (*CacheDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to cache database: %w", err), closeErr)
	}

	return &CacheDB{
		db:   db,
		path: dbPath,
		mem:  make(map[string]memEntry),
		now:  time.Now,
	}, nil
}

// CreateTable creates a table using the provided schema
func (c *CacheDB) CreateTable(schema string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *CacheDB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem = make(map[string]memEntry)
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// validateTableName checks if the table name is in the whitelist
// to prevent SQL injection attacks
func validateTableName(tableName string) error {
	if !ValidCacheTableNames[tableName] {
		return fmt.Errorf("invalid cache table name: %s", tableName)
	}
	return nil
}

func memKey(tableName, key string) string {
	return tableName + "\x00" + key
}

// GetOrFetch returns the cached value for key when it is younger than ttl,
// otherwise calls fetchFunc and caches its result. A nil cache fetches directly.
// The bool result reports whether the value came from the cache.
func GetOrFetch[T any](c *CacheDB, tableName, key string, ttl time.Duration, fetchFunc FetchFunc[T]) (T, bool, error) {
	var zero T

	if c == nil {
		data, err := fetchFunc()
		return data, false, err
	}

	cached, fromCache, err := c.Get(tableName, key, ttl)
	if err != nil {
		slog.Warn("Cache lookup failed, fetching directly", "table", tableName, "key", key, "error", err)
	}
	if err == nil && fromCache {
		var result T
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			slog.Debug("Cache hit", "table", tableName, "key", key)
			return result, true, nil
		}
		slog.Warn("Failed to unmarshal cached data, will refetch", "table", tableName, "key", key, "error", err)
	}

	slog.Debug("Cache miss, fetching data", "table", tableName, "key", key)
	data, err := fetchFunc()
	if err != nil {
		return zero, false, err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Warn("Failed to marshal data for caching", "table", tableName, "key", key, "error", err)
		return data, false, nil
	}
	if err := c.Set(tableName, key, string(jsonData)); err != nil {
		// caching failure shouldn't fail the fetch
		slog.Warn("Failed to cache data", "table", tableName, "key", key, "error", err)
	}

	return data, false, nil
}

// Get retrieves a cached value from the specified table.
// Returns the cached data, whether it was from cache, and any error
func (c *CacheDB) Get(tableName, key string, ttl time.Duration) (string, bool, error) {
	if err := validateTableName(tableName); err != nil {
		return "", false, err
	}

	now := c.now().UTC()

	c.mu.RLock()
	entry, ok := c.mem[memKey(tableName, key)]
	c.mu.RUnlock()
	if ok {
		if now.Sub(entry.cachedAt) > ttl {
			slog.Debug("Cache expired", "table", tableName, "key", key, "layer", "memory")
			return "", false, nil
		}
		return entry.data, true, nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	query := fmt.Sprintf(`
		SELECT data, cached_at
		FROM %s
		WHERE cache_key = ?
	`, tableName)

	var data string
	var cachedAt time.Time
	err := c.db.QueryRow(query, key).Scan(&data, &cachedAt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query cache: %w", err)
	}

	age := now.Sub(cachedAt)
	if age > ttl {
		slog.Debug("Cache expired", "table", tableName, "key", key, "age", age)
		return "", false, nil
	}

	return data, true, nil
}

// Set stores a value in both layers
func (c *CacheDB) Set(tableName, key, data string) error {
	if err := validateTableName(tableName); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cachedAt := c.now().UTC()
	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (cache_key, data, cached_at)
		VALUES (?, ?, ?)
	`, tableName)

	if _, err := c.db.Exec(query, key, data, cachedAt); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.mem[memKey(tableName, key)] = memEntry{data: data, cachedAt: cachedAt}
	return nil
}

// Delete removes a single entry from both layers
func (c *CacheDB) Delete(tableName, key string) error {
	if err := validateTableName(tableName); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.mem, memKey(tableName, key))
	query := fmt.Sprintf("DELETE FROM %s WHERE cache_key = ?", tableName)
	if _, err := c.db.Exec(query, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// ClearExpired removes entries older than ttl from the specified table
func (c *CacheDB) ClearExpired(tableName string, ttl time.Duration) (int64, error) {
	if err := validateTableName(tableName); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().UTC().Add(-ttl)
	for k, entry := range c.mem {
		if entry.cachedAt.Before(cutoff) {
			delete(c.mem, k)
		}
	}

	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE cached_at < ?
	`, tableName)

	result, err := c.db.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired cache: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		slog.Info("Cleared expired cache entries", "table", tableName, "count", rows)
	}
	return rows, nil
}

// ClearAll removes all entries from the specified table
// Returns the number of rows deleted
func (c *CacheDB) ClearAll(tableName string) (int64, error) {
	if err := validateTableName(tableName); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem = make(map[string]memEntry)

	query := fmt.Sprintf("DELETE FROM %s", tableName)
	result, err := c.db.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	slog.Debug("Cache table cleared", "table", tableName, "rows_deleted", rows)
	return rows, nil
}
