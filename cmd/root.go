package cmd

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/lepinkainen/librarylookup/cmd/crawl"
	"github.com/lepinkainen/librarylookup/internal/cache"
	"github.com/lepinkainen/librarylookup/internal/config"
	"github.com/spf13/viper"
)

var runCrawl = crawl.Run

// CLI represents the complete command structure for the librarylookup application
type CLI struct {
	Verbose bool `short:"v" help:"Enable debug logging"`

	// Datasette flags
	Datasette   bool   `help:"Export the dataset to Datasette" default:"${datasette}" negatable:""`
	DatasetteDB string `help:"Path to SQLite database file" default:"${datasette_db}"`

	// Cache flags
	CacheDBFile string `help:"Path to cache SQLite database file" default:"${cache_db}"`
	CacheTTL    string `help:"Cache time-to-live duration (e.g., 720h for 30 days)" default:"${cache_ttl}"`

	Crawl CrawlCmd `cmd:"" default:"withargs" help:"Crawl the saved list and write the dataset"`
	Cache CacheCmd `cmd:"" help:"Manage the local cache"`
}

// CrawlCmd represents the crawl command
type CrawlCmd struct {
	BaseURL           string  `help:"Catalogue base URL" default:"${base_url}"`
	ListURL           string  `help:"Saved list URL; the first list on the dashboard is used when empty" default:"${list_url}"`
	Output            string  `short:"o" help:"Path to the JSON dataset" default:"${output}"`
	CoversDir         string  `help:"Directory for downloaded cover images" default:"${covers_dir}"`
	Concurrency       int     `short:"j" help:"Number of titles extracted at once" default:"${concurrency}"`
	RequestsPerSecond float64 `help:"Catalogue requests per second, 0 for unlimited" default:"${requests_per_second}"`
	FailFast          bool    `help:"Abort the crawl on the first failing title" default:"${fail_fast}" negatable:""`
	MetricsFile       string  `help:"Write Prometheus metrics to this textfile" default:"${metrics_file}"`
}

// CacheCmd groups the cache subcommands
type CacheCmd struct {
	Invalidate cache.InvalidateCacheCmd `cmd:"" help:"Delete every cached entry of a source"`
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(false)
	if err := initConfig(); err != nil {
		slog.Error("Fatal error config file", "error", err)
		os.Exit(1)
	}

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("librarylookup"),
		kong.Description("Crawl a Spydus library catalogue list into a JSON dataset."),
		kong.UsageOnError(),
		configVars(),
	)

	if cli.Verbose {
		initLogging(true)
	}
	updateGlobalConfig(&cli)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// configVars exposes the resolved configuration as flag defaults, so flags
// override the config file and the config file overrides built-in defaults.
func configVars() kong.Vars {
	return kong.Vars{
		"datasette":           strconv.FormatBool(config.DatasetteEnabled),
		"datasette_db":        config.DatasetteDBFile,
		"cache_db":            config.CacheDBFile,
		"cache_ttl":           config.CacheTTL.String(),
		"base_url":            config.BaseURL,
		"list_url":            config.ListURL,
		"output":              config.Output,
		"covers_dir":          config.CoversDir,
		"concurrency":         strconv.Itoa(config.Concurrency),
		"requests_per_second": strconv.FormatFloat(config.RequestsPerSecond, 'f', -1, 64),
		"fail_fast":           strconv.FormatBool(config.FailFast),
		"metrics_file":        config.MetricsFile,
	}
}

func initConfig() error {
	config.SetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stdErrors.As(err, &notFound) {
			return err
		}
		// Written before the environment is bound so credentials never land on disk.
		slog.Info("Config file not found, writing default config file...")
		if err := viper.SafeWriteConfig(); err != nil {
			slog.Warn("Error writing config file", "error", err)
		}
	}

	for key, env := range map[string]string{
		config.KeyCardNumber: "LIBRARY_CARD_NUMBER",
		config.KeyPassword:   "LIBRARY_CARD_PASSWORD",
		config.KeyBaseURL:    "LIBRARY_BASE_URL",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s: %w", env, err)
		}
	}

	config.InitConfig()
	return nil
}

func updateGlobalConfig(cli *CLI) {
	viper.Set(config.KeyDatasetteEnabled, cli.Datasette)
	viper.Set(config.KeyDatasetteDBFile, cli.DatasetteDB)

	viper.Set(config.KeyCacheDBFile, cli.CacheDBFile)
	viper.Set(config.KeyCacheTTL, cli.CacheTTL)

	c := cli.Crawl
	viper.Set(config.KeyBaseURL, c.BaseURL)
	viper.Set(config.KeyListURL, c.ListURL)
	viper.Set(config.KeyOutput, c.Output)
	viper.Set(config.KeyCoversDir, c.CoversDir)
	viper.Set(config.KeyRequestsPerSecond, c.RequestsPerSecond)
	viper.Set(config.KeyMetricsFile, c.MetricsFile)

	config.InitConfig()
	config.SetConcurrency(c.Concurrency)
	config.SetFailFast(c.FailFast)
}

func (c *CrawlCmd) Run(ctx context.Context) error {
	slog.Info("Starting crawl", "base_url", config.BaseURL, "output", config.Output, "concurrency", config.Concurrency)
	return runCrawl(ctx, crawl.OptionsFromConfig())
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}
