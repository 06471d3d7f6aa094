package cache

// SQL schemas for cache tables
// All cache tables use "cache_key" as the primary key column for consistency

// TintCacheSchema maps a cover image path to its chosen tint colour.
const TintCacheSchema = `
CREATE TABLE IF NOT EXISTS tint_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tint_cached_at ON tint_cache(cached_at);
`

// TintTable is the tint colour cache table.
const TintTable = "tint_cache"

// AllCacheSchemas contains all cache table schemas for easy initialization
var AllCacheSchemas = []string{
	TintCacheSchema,
}

// ValidCacheTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidCacheTableNames = map[string]bool{
	TintTable: true,
}

// Sources maps the names accepted by "cache invalidate" to their tables.
var Sources = map[string]string{
	"tint": TintTable,
}
