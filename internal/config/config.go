// Package config holds the resolved crawler settings.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyBaseURL           = "base_url"
	KeyListURL           = "list_url"
	KeyAuthority         = "authority"
	KeyConcurrency       = "concurrency"
	KeyRequestsPerSecond = "requests_per_second"
	KeyCoversDir         = "covers_dir"
	KeyOutput            = "output"
	KeyFailFast          = "fail_fast"
	KeyAnomaliesFile     = "anomalies_file"
	KeyRetryMaxAttempts  = "retry.max_attempts"
	KeyRetryBase         = "retry.base"
	KeyRetryMax          = "retry.max"
	KeyCacheDBFile       = "cache.dbfile"
	KeyCacheTTL          = "cache.ttl"
	KeyDatasetteEnabled  = "datasette.enabled"
	KeyDatasetteDBFile   = "datasette.dbfile"
	KeyDatasetteMode     = "datasette.mode"
	KeyDatasetteURL      = "datasette.remote_url"
	KeyDatasetteToken    = "datasette.api_token"
	KeyMetricsFile       = "metrics_file"
	KeyCardNumber        = "credentials.username"
	KeyPassword          = "credentials.password"
)

// Default values.
const (
	DefaultBaseURL           = "https://herts.spydus.co.uk"
	DefaultAuthority         = "Hertfordshire County Council"
	DefaultConcurrency       = 5
	DefaultRequestsPerSecond = 5.0
	DefaultCoversDir         = "covers"
	DefaultOutput            = "books.json"
	DefaultCacheDBFile       = "./cache.db"
	DefaultCacheTTL          = 720 * time.Hour
	DefaultDatasetteDBFile   = "./librarylookup.db"
	DefaultDatasetteMode     = "local"
)

// Global configuration variables
var (
	BaseURL           string
	ListURL           string
	Authority         string
	Concurrency       int
	RequestsPerSecond float64
	CoversDir         string
	Output            string
	FailFast          bool
	AnomaliesFile     string
	RetryMaxAttempts  int
	RetryBase         time.Duration
	RetryMax          time.Duration
	CacheDBFile       string
	CacheTTL          time.Duration
	DatasetteEnabled  bool
	DatasetteDBFile   string
	DatasetteMode     string
	DatasetteURL      string
	DatasetteToken    string
	MetricsFile       string
	CardNumber        string
	Password          string
)

// SetDefaults registers the default value of every key with viper.
func SetDefaults() {
	viper.SetDefault(KeyBaseURL, DefaultBaseURL)
	viper.SetDefault(KeyListURL, "")
	viper.SetDefault(KeyAuthority, DefaultAuthority)
	viper.SetDefault(KeyConcurrency, DefaultConcurrency)
	viper.SetDefault(KeyRequestsPerSecond, DefaultRequestsPerSecond)
	viper.SetDefault(KeyCoversDir, DefaultCoversDir)
	viper.SetDefault(KeyOutput, DefaultOutput)
	viper.SetDefault(KeyFailFast, true)
	viper.SetDefault(KeyAnomaliesFile, "")
	viper.SetDefault(KeyRetryMaxAttempts, 5)
	viper.SetDefault(KeyRetryBase, "1s")
	viper.SetDefault(KeyRetryMax, "15s")
	viper.SetDefault(KeyCacheDBFile, DefaultCacheDBFile)
	viper.SetDefault(KeyCacheTTL, DefaultCacheTTL.String())
	viper.SetDefault(KeyDatasetteEnabled, false)
	viper.SetDefault(KeyDatasetteDBFile, DefaultDatasetteDBFile)
	viper.SetDefault(KeyDatasetteMode, DefaultDatasetteMode)
	viper.SetDefault(KeyMetricsFile, "")
}

// InitConfig initializes the global configuration from viper.
func InitConfig() {
	SetDefaults()

	BaseURL = viper.GetString(KeyBaseURL)
	ListURL = viper.GetString(KeyListURL)
	Authority = viper.GetString(KeyAuthority)
	Concurrency = viper.GetInt(KeyConcurrency)
	RequestsPerSecond = viper.GetFloat64(KeyRequestsPerSecond)
	CoversDir = viper.GetString(KeyCoversDir)
	Output = viper.GetString(KeyOutput)
	FailFast = viper.GetBool(KeyFailFast)
	AnomaliesFile = viper.GetString(KeyAnomaliesFile)
	RetryMaxAttempts = viper.GetInt(KeyRetryMaxAttempts)
	RetryBase = viper.GetDuration(KeyRetryBase)
	RetryMax = viper.GetDuration(KeyRetryMax)
	CacheDBFile = viper.GetString(KeyCacheDBFile)
	CacheTTL = viper.GetDuration(KeyCacheTTL)
	DatasetteEnabled = viper.GetBool(KeyDatasetteEnabled)
	DatasetteDBFile = viper.GetString(KeyDatasetteDBFile)
	DatasetteMode = viper.GetString(KeyDatasetteMode)
	DatasetteURL = viper.GetString(KeyDatasetteURL)
	DatasetteToken = viper.GetString(KeyDatasetteToken)
	MetricsFile = viper.GetString(KeyMetricsFile)
	CardNumber = viper.GetString(KeyCardNumber)
	Password = viper.GetString(KeyPassword)
}

// SetFailFast sets the FailFast flag
func SetFailFast(enabled bool) {
	FailFast = enabled
	viper.Set(KeyFailFast, enabled)
}

// SetConcurrency sets the number of titles extracted at once. Values below one mean one.
func SetConcurrency(n int) {
	Concurrency = max(n, 1)
	viper.Set(KeyConcurrency, Concurrency)
}
