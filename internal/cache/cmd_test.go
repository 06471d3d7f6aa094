package cache

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lepinkainen/librarylookup/internal/config"
)

func TestInvalidateCacheCmd(t *testing.T) {
	oldFile, oldTTL := config.CacheDBFile, config.CacheTTL
	t.Cleanup(func() { config.CacheDBFile, config.CacheTTL = oldFile, oldTTL })

	config.CacheDBFile = filepath.Join(t.TempDir(), "cache.db")
	config.CacheTTL = time.Hour

	c, err := Open(config.CacheDBFile, config.CacheTTL)
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	_ = c.Set(TintTable, "k", `"#123456"`)
	_ = c.Close()

	if err := (&InvalidateCacheCmd{Source: "tint"}).Run(); err != nil {
		t.Fatalf("Expected invalidate to succeed, got %v", err)
	}

	c, err = Open(config.CacheDBFile, config.CacheTTL)
	if err != nil {
		t.Fatalf("Failed to reopen cache: %v", err)
	}
	defer func() { _ = c.Close() }()
	if c.CacheExists(TintTable, "k") {
		t.Error("Expected entry to be removed")
	}
}

func TestInvalidateCacheCmd_UnknownSource(t *testing.T) {
	err := (&InvalidateCacheCmd{Source: "omdb"}).Run()
	if err == nil || !strings.Contains(err.Error(), "valid sources are: tint") {
		t.Fatalf("Expected unknown source error, got %v", err)
	}
}
