// Package cli implements the command-line interface for clipvault.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/kilupskalvis/clipvault/internal/classify"
	"github.com/kilupskalvis/clipvault/internal/config"
	"github.com/kilupskalvis/clipvault/internal/core"
	"github.com/kilupskalvis/clipvault/internal/store"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config  *config.Config
	Logger  *slog.Logger
	Cache   *core.Cache
	Tracker *core.Tracker
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Tracker != nil {
		if err := c.Tracker.Close(); err != nil {
			c.Logger.Warn("failed to close history", "error", err)
		}
	}
}

// loadConfig reads the configuration selected by --config or the environment.
func loadConfig() *config.Config {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		exitError("%v", err)
	}
	return cfg
}

// initContext loads config, opens the store and initializes the tracker.
// The observer may be nil.
func initContext(ctx context.Context, observer core.Observer) *cmdContext {
	cfg := loadConfig()
	logger := newLogger(logLevel, logFormat, os.Stderr)

	st, err := store.New(storeOptions(cfg, logger))
	if err != nil {
		exitError("failed to open store: %v", err)
	}

	cache := core.NewCache(cfg.DataDir, cfg.CacheDir, logger)
	tracker := core.NewTracker(core.TrackerConfig{
		Settings: trackerSettings(cfg),
		Cache:    cache,
		Observer: observer,
		Logger:   logger,
	})
	tracker.Init(ctx, st)
	if tracker.Degraded() {
		fmt.Fprintln(os.Stderr, "warning: history storage is unavailable, changes will not be saved")
	}

	return &cmdContext{Config: cfg, Logger: logger, Cache: cache, Tracker: tracker}
}

func storeOptions(cfg *config.Config, logger *slog.Logger) store.Options {
	return store.Options{
		Backend:  store.Backend(cfg.Database.Backend),
		Location: cfg.Database.Location,
		InMemory: cfg.Database.InMemory,
		Logger:   logger,
	}
}

func trackerSettings(cfg *config.Config) core.Settings {
	return core.Settings{
		HistoryLength: cfg.History.Length,
		HistoryTime:   cfg.HistoryTime(),
		ClearPolicy:   cfg.ClearPolicy(),
	}
}

func classifierConfig(cfg *config.Config, logger *slog.Logger) classify.Config {
	return classify.Config{
		Detector:      classify.NewChromaDetector(),
		MaxCharacters: cfg.CharacterItem.MaxCharacters,
		MaxCodeScan:   cfg.Capture.MaxCodeScan,
		Logger:        logger,
	}
}

var rootCmd = &cobra.Command{
	Use:   "clipvault",
	Short: "Clipboard history manager",
	Long: `clipvault records everything copied to the clipboard, classifies it
as text, code, links, colors, images or files, and keeps a searchable
history with pinning, tags and automatic expiry.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/clipvault/config.toml, env: "+config.EnvConfig+")")
	pf.StringVar(&logLevel, "log-level", envOrDefault("CLIPVAULT_LOG_LEVEL", "warn"), "Log level (debug|info|warn|error)")
	pf.StringVar(&logFormat, "log-format", envOrDefault("CLIPVAULT_LOG_FORMAT", "text"), "Log format (json|text)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(unpinCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(titleCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(pasteCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// parseID parses an entry id argument
func parseID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 0 {
		exitError("invalid entry id: %s", arg)
	}
	return id
}
