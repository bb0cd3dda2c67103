package cache

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lepinkainen/listado/internal/testutil"
	"github.com/spf13/viper"
)

type TestData struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// fakeClock lets tests move the cache's notion of "now"
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func setupTestCache(t *testing.T) (*CacheDB, string, *fakeClock) {
	t.Helper()

	env := testutil.NewTestEnv(t)
	dbPath := filepath.Join(env.RootDir(), "cache.db")

	cache, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to create cache database: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	cache.now = clock.Now

	return cache, dbPath, clock
}

func TestDefaultTTL(t *testing.T) {
	if DefaultTTL != time.Minute {
		t.Fatalf("Expected default TTL of one minute, got %v", DefaultTTL)
	}
}

func TestGetOrFetch_CacheHit(t *testing.T) {
	cache, _, _ := setupTestCache(t)

	if err := cache.Set(PayloadTable, "listado", `{"id":1,"name":"Test"}`); err != nil {
		t.Fatalf("Failed to pre-populate cache: %v", err)
	}

	fetchCalled := false
	fetchFunc := func() (TestData, error) {
		fetchCalled = true
		return TestData{}, nil
	}

	result, fromCache, err := GetOrFetch(cache, PayloadTable, "listado", DefaultTTL, fetchFunc)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !fromCache {
		t.Error("Expected fromCache to be true")
	}
	if fetchCalled {
		t.Error("Expected fetch function not to be called")
	}
	if result != (TestData{ID: 1, Name: "Test"}) {
		t.Errorf("Unexpected result %+v", result)
	}
}

func TestGetOrFetch_CacheMiss(t *testing.T) {
	cache, _, _ := setupTestCache(t)

	calls := 0
	fetchFunc := func() (TestData, error) {
		calls++
		return TestData{ID: 2, Name: "Fetched"}, nil
	}

	result, fromCache, err := GetOrFetch(cache, PayloadTable, "listado", DefaultTTL, fetchFunc)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fromCache {
		t.Error("Expected fromCache to be false on first fetch")
	}
	if result.Name != "Fetched" {
		t.Errorf("Unexpected result %+v", result)
	}

	// Second call is served from cache
	_, fromCache, err = GetOrFetch(cache, PayloadTable, "listado", DefaultTTL, fetchFunc)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !fromCache {
		t.Error("Expected second call to hit the cache")
	}
	if calls != 1 {
		t.Errorf("Expected one fetch, got %d", calls)
	}
}

func TestGetOrFetch_RespectsTTLExpiration(t *testing.T) {
	cache, _, clock := setupTestCache(t)

	calls := 0
	fetchFunc := func() (TestData, error) {
		calls++
		return TestData{ID: calls}, nil
	}

	if _, _, err := GetOrFetch(cache, PayloadTable, "listado", DefaultTTL, fetchFunc); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	clock.Advance(30 * time.Second)
	result, fromCache, _ := GetOrFetch(cache, PayloadTable, "listado", DefaultTTL, fetchFunc)
	if !fromCache || result.ID != 1 {
		t.Errorf("Expected cached entry within TTL, got %+v (fromCache=%v)", result, fromCache)
	}

	clock.Advance(31 * time.Second)
	result, fromCache, _ = GetOrFetch(cache, PayloadTable, "listado", DefaultTTL, fetchFunc)
	if fromCache {
		t.Error("Expected expired entry to be refetched")
	}
	if result.ID != 2 {
		t.Errorf("Expected refetched result, got %+v", result)
	}
}

func TestGetOrFetch_FetchError(t *testing.T) {
	cache, _, _ := setupTestCache(t)

	fetchErr := errors.New("boom")
	_, fromCache, err := GetOrFetch(cache, PayloadTable, "listado", DefaultTTL, func() (TestData, error) {
		return TestData{}, fetchErr
	})
	if !errors.Is(err, fetchErr) {
		t.Fatalf("Expected fetch error, got %v", err)
	}
	if fromCache {
		t.Error("Expected fromCache to be false")
	}

	// Failures are not cached
	_, found, err := cache.Get(PayloadTable, "listado", DefaultTTL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if found {
		t.Error("Expected failed fetch not to be cached")
	}
}

func TestGetOrFetch_NilCacheFetchesDirectly(t *testing.T) {
	result, fromCache, err := GetOrFetch(nil, PayloadTable, "listado", DefaultTTL, func() (TestData, error) {
		return TestData{ID: 7}, nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fromCache || result.ID != 7 {
		t.Errorf("Unexpected result %+v (fromCache=%v)", result, fromCache)
	}
}

func TestCacheDB_GetSet(t *testing.T) {
	cache, _, _ := setupTestCache(t)

	if err := cache.Set(PayloadTable, "k", `[1,2]`); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}

	data, fromCache, err := cache.Get(PayloadTable, "k", time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !fromCache || data != `[1,2]` {
		t.Errorf("Expected cached data, got %q (fromCache=%v)", data, fromCache)
	}

	data, fromCache, err = cache.Get(PayloadTable, "missing", time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fromCache || data != "" {
		t.Errorf("Expected miss, got %q", data)
	}
}

func TestCacheDB_PersistsAcrossReopen(t *testing.T) {
	cache, dbPath, clock := setupTestCache(t)

	if err := cache.Set(PayloadTable, "k", `"stored"`); err != nil {
		t.Fatalf("Failed to set cache: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("Failed to close cache: %v", err)
	}

	reopened, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen cache: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	reopened.now = clock.Now

	data, fromCache, err := reopened.Get(PayloadTable, "k", time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !fromCache || data != `"stored"` {
		t.Errorf("Expected entry from disk, got %q (fromCache=%v)", data, fromCache)
	}

	clock.Advance(2 * time.Hour)
	_, fromCache, err = reopened.Get(PayloadTable, "k", time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fromCache {
		t.Error("Expected disk entry to expire")
	}
}

func TestCacheDB_Delete(t *testing.T) {
	cache, _, _ := setupTestCache(t)

	_ = cache.Set(PayloadTable, "k", `1`)
	if err := cache.Delete(PayloadTable, "k"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	_, fromCache, err := cache.Get(PayloadTable, "k", time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fromCache {
		t.Error("Expected deleted entry to be gone")
	}
}

func TestCacheDB_ClearExpired(t *testing.T) {
	cache, _, clock := setupTestCache(t)

	_ = cache.Set(PayloadTable, "old", `1`)
	clock.Advance(time.Hour)
	_ = cache.Set(PayloadTable, "new", `2`)

	rows, err := cache.ClearExpired(PayloadTable, 30*time.Minute)
	if err != nil {
		t.Fatalf("Failed to clear expired cache: %v", err)
	}
	if rows != 1 {
		t.Errorf("Expected 1 row cleared, got %d", rows)
	}

	if _, found, _ := cache.Get(PayloadTable, "old", 24*time.Hour); found {
		t.Error("Expected old entry to be cleared")
	}
	if _, found, _ := cache.Get(PayloadTable, "new", 24*time.Hour); !found {
		t.Error("Expected new entry to remain")
	}
}

func TestCacheDB_ClearAll(t *testing.T) {
	cache, _, _ := setupTestCache(t)

	_ = cache.Set(PayloadTable, "a", `1`)
	_ = cache.Set(PayloadTable, "b", `2`)

	rows, err := cache.ClearAll(PayloadTable)
	if err != nil {
		t.Fatalf("Failed to clear cache: %v", err)
	}
	if rows != 2 {
		t.Errorf("Expected 2 rows deleted, got %d", rows)
	}
	if _, found, _ := cache.Get(PayloadTable, "a", time.Hour); found {
		t.Error("Expected cache to be empty")
	}
}

func TestCacheDB_InvalidTable(t *testing.T) {
	cache, _, _ := setupTestCache(t)

	if _, err := cache.ClearAll("records; DROP TABLE records"); err == nil {
		t.Error("Expected error for invalid table name")
	}
	if err := cache.Set("nope", "k", "v"); err == nil {
		t.Error("Expected error for invalid table name")
	}
	if _, _, err := cache.Get("nope", "k", time.Minute); err == nil {
		t.Error("Expected error for invalid table name")
	}
}

func TestClearCmd(t *testing.T) {
	env := testutil.NewTestEnv(t)
	dbPath := env.CachePath()

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("cache.dbfile", dbPath)

	cache, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	_ = cache.Set(PayloadTable, "k", `1`)
	_ = cache.Close()

	if err := (&ClearCmd{}).Run(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	cache, err = Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen cache: %v", err)
	}
	defer func() { _ = cache.Close() }()
	if _, found, _ := cache.Get(PayloadTable, "k", time.Hour); found {
		t.Error("Expected cache to be cleared")
	}
}

func TestClearCmd_InvalidTTL(t *testing.T) {
	env := testutil.NewTestEnv(t)

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("cache.dbfile", env.CachePath())
	viper.Set("cache.ttl", "soon")

	if err := (&ClearCmd{Expired: true}).Run(); err == nil {
		t.Error("Expected error for invalid cache.ttl")
	}
}
