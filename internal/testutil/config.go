package testutil

import (
	"testing"

	"github.com/lepinkainen/librarylookup/internal/cache"
	"github.com/lepinkainen/librarylookup/internal/config"
	"github.com/spf13/viper"
)

// ResetConfig resets viper, loads the defaults into the config globals and
// restores the previous globals when the test ends.
func ResetConfig(t *testing.T) {
	t.Helper()

	saved := snapshot()
	viper.Reset()
	config.InitConfig()

	t.Cleanup(func() {
		saved.restore()
		viper.Reset()
	})
}

// SetViperValue sets a viper key, re-reads the config globals and restores
// the previous value when the test ends.
func SetViperValue(t *testing.T, key string, value any) {
	t.Helper()

	old, had := viper.Get(key), viper.IsSet(key)
	viper.Set(key, value)
	config.InitConfig()

	t.Cleanup(func() {
		if had {
			viper.Set(key, old)
		}
	})
}

// SetupTestCache opens a cache database inside env and closes it when the
// test ends.
func SetupTestCache(t *testing.T, env *TestEnv) *cache.CacheDB {
	t.Helper()

	env.MkdirAll("cache")
	db, err := cache.Open(env.Path("cache", "test-cache.db"), 0)
	if err != nil {
		t.Fatalf("failed to open test cache: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// SetupDatasetteDB enables the SQLite export into a database file inside env
// and returns its path.
func SetupDatasetteDB(t *testing.T, env *TestEnv) string {
	t.Helper()

	dbPath := env.Path("test.db")
	SetViperValue(t, config.KeyDatasetteEnabled, true)
	SetViperValue(t, config.KeyDatasetteDBFile, dbPath)
	return dbPath
}

type configState struct {
	baseURL, listURL, authority string
	concurrency                 int
	failFast, datasette         bool
	datasetteDB, cacheDB        string
	output, coversDir           string
	cardNumber, password        string
}

func snapshot() configState {
	return configState{
		baseURL:     config.BaseURL,
		listURL:     config.ListURL,
		authority:   config.Authority,
		concurrency: config.Concurrency,
		failFast:    config.FailFast,
		datasette:   config.DatasetteEnabled,
		datasetteDB: config.DatasetteDBFile,
		cacheDB:     config.CacheDBFile,
		output:      config.Output,
		coversDir:   config.CoversDir,
		cardNumber:  config.CardNumber,
		password:    config.Password,
	}
}

func (s configState) restore() {
	config.BaseURL = s.baseURL
	config.ListURL = s.listURL
	config.Authority = s.authority
	config.Concurrency = s.concurrency
	config.FailFast = s.failFast
	config.DatasetteEnabled = s.datasette
	config.DatasetteDBFile = s.datasetteDB
	config.CacheDBFile = s.cacheDB
	config.Output = s.output
	config.CoversDir = s.coversDir
	config.CardNumber = s.cardNumber
	config.Password = s.password
}
