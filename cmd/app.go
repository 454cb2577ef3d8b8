package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/webmip/postbank/internal/config"
	"github.com/webmip/postbank/internal/dispatch"
	"github.com/webmip/postbank/internal/format"
	"github.com/webmip/postbank/internal/logging"
	"github.com/webmip/postbank/internal/storage"
	"github.com/webmip/postbank/internal/store"
)

// app is the per-invocation wiring: config, logger, durable layers and the
// store mirrored over them.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	records *storage.SQLiteStorage
	store   *store.Store
}

// exitWithError prints msg and terminates the process.
func exitWithError(msg string) {
	format.PrintError(msg)
	os.Exit(1)
}

// loadConfig resolves the config file, environment and persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("POSTBANK_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("transport"); v != "" {
		cfg.Transport = v
	}
	if v, _ := cmd.Flags().GetString("proxy-url"); v != "" {
		cfg.ProxyURL = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: os.Stderr,
	})
}

// openApp opens storage and loads the store. It exits on failure. A load
// failure leaves the store at its defaults and is reported as a warning.
func openApp(cmd *cobra.Command) *app {
	cfg, err := loadConfig(cmd)
	if err != nil {
		exitWithError(fmt.Sprintf("Invalid configuration: %v", err))
	}
	logger := newLogger(cfg)

	records, err := storage.Open(cfg.DataDir)
	if err != nil {
		exitWithError(fmt.Sprintf("Failed to open storage: %v", err))
	}
	kv, err := storage.OpenJSON(cfg.DataDir)
	if err != nil {
		records.Close()
		exitWithError(fmt.Sprintf("Failed to open storage: %v", err))
	}

	st := store.New(records, kv, store.WithLogger(logger))
	if err := st.Load(); err != nil {
		format.PrintWarning(fmt.Sprintf("Failed to load saved data, starting empty: %v", err))
	}

	return &app{cfg: cfg, logger: logger, records: records, store: st}
}

func (a *app) Close() {
	if err := a.records.Close(); err != nil {
		a.logger.Warn("failed to close storage", "error", err)
	}
}

// dispatcher builds the request dispatcher from config. It exits on failure.
func (a *app) dispatcher() *dispatch.Dispatcher {
	d, err := dispatch.New(a.store,
		dispatch.WithLogger(a.logger),
		dispatch.WithTimeout(a.cfg.Timeout),
		dispatch.WithMode(a.cfg.Mode()),
		dispatch.WithProxyURL(a.cfg.ProxyURL),
		dispatch.WithIPLookupURL(a.cfg.IPLookupURL),
	)
	if err != nil {
		exitWithError(fmt.Sprintf("Failed to set up transport: %v", err))
	}
	return d
}

// signalContext is canceled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
