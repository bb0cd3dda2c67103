package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/listado/internal/cache"
	"github.com/lepinkainen/listado/internal/config"
	"github.com/lepinkainen/listado/internal/tui"
)

var (
	runBrowser           = tui.Browse
	stdout     io.Writer = os.Stdout
	stderr     io.Writer = os.Stderr
)

// CLI represents the complete command structure for the listado application
type CLI struct {
	// Global flags
	Verbose bool `short:"v" help:"Enable debug logging"`

	RemoteURL   string `help:"Remote listing endpoint (overrides remote.url)"`
	Payload     string `help:"Remote payload contract: array or envelope (overrides remote.payload)"`
	FetchPolicy string `help:"What to do when the remote fetch fails: degrade or strict (overrides sync.fetchpolicy)"`
	NewestFirst bool   `help:"List records newest first"`

	// Storage flags
	StoreDB     string `help:"Path to local store SQLite file (overrides store.dbfile)"`
	CacheDBFile string `help:"Path to payload cache SQLite file (overrides cache.dbfile)"`
	CacheTTL    string `help:"Payload cache time-to-live, e.g. 1m (overrides cache.ttl)"`

	Sync    SyncCmd    `cmd:"" help:"Fill the local store from the remote listing when it is empty"`
	List    ListCmd    `cmd:"" help:"Print a page of the local listing"`
	Add     AddCmd     `cmd:"" help:"Add a record to the front of the local listing"`
	Refresh RefreshCmd `cmd:"" help:"Drop the local store and fetch the remote listing again"`
	Watch   WatchCmd   `cmd:"" help:"Apply registrations from the broker as they are published"`
	Browse  BrowseCmd  `cmd:"" help:"Browse the local listing interactively"`
	Cache   CacheCmd   `cmd:"" help:"Manage the payload cache"`
}

// CacheCmd groups the payload cache subcommands
type CacheCmd struct {
	Clear cache.ClearCmd `cmd:"" help:"Remove cached remote payloads"`
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(false)
	initConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI

	kctx := kong.Parse(&cli,
		kong.Name("listado"),
		kong.Description("Keep a local mirror of the remote category listing."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	if cli.Verbose {
		initLogging(true)
	}

	// Update global config based on parsed flags
	updateGlobalConfig(&cli)

	if err := kctx.Run(); err != nil {
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	config.InitConfig()

	// Enable environment variable support, e.g. LISTADO_REMOTE_URL
	viper.SetEnvPrefix("listado")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Debug("Config file not found, using defaults")
		} else {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
	}
}

func updateGlobalConfig(cli *CLI) {
	overrides := map[string]string{
		"remote.url":       cli.RemoteURL,
		"remote.payload":   cli.Payload,
		"sync.fetchpolicy": cli.FetchPolicy,
		"store.dbfile":     cli.StoreDB,
		"cache.dbfile":     cli.CacheDBFile,
		"cache.ttl":        cli.CacheTTL,
	}
	for key, value := range overrides {
		if value != "" {
			viper.Set(key, value)
		}
	}

	if cli.NewestFirst {
		viper.Set("sync.newestfirst", true)
	}
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	// Logs go to stderr so list output stays machine-readable
	handler := humanlog.NewHandler(stderr, &humanlog.Options{
		Level: level,
	})

	// Set the default logger
	slog.SetDefault(slog.New(handler))
}
