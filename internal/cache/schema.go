package cache

// SQL schemas for cache tables
// All cache tables use "cache_key" as the primary key column for consistency

// PayloadTable caches decoded remote listings
const PayloadTable = "payload_cache"

// PayloadCacheSchema defines the schema for the remote listing payload cache
const PayloadCacheSchema = `
CREATE TABLE IF NOT EXISTS payload_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_payload_cached_at ON payload_cache(cached_at);
`

// AllCacheSchemas contains all cache table schemas for easy initialization
var AllCacheSchemas = []string{
	PayloadCacheSchema,
}

// ValidCacheTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidCacheTableNames = map[string]bool{
	PayloadTable: true,
}
