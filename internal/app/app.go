package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/five82/periscope/internal/api"
	"github.com/five82/periscope/internal/config"
	"github.com/five82/periscope/internal/fetch"
	"github.com/five82/periscope/internal/logging"
	"github.com/five82/periscope/internal/prefs"
	"github.com/five82/periscope/internal/state"
	"github.com/five82/periscope/internal/stream"
	"github.com/five82/periscope/internal/ui"
)

// Options configure the periscope TUI.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/periscope/prefs.toml
	APIBase    string // overrides config and environment when set
	Debug      bool
}

// Run boots the TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := LoadConfig(opts.ConfigPath, opts.APIBase)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if opts.Debug {
		level = "debug"
	}
	logger, err := logging.NewFile(cfg.LogPath, level)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		logger.Warn("load prefs failed, using defaults", zap.Error(err))
	}

	client, err := NewClient(cfg)
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store := state.NewStore(client)
	health := &state.HealthStore{}
	StartHealthPoller(ctx, health, client, cfg.HealthInterval, logger)

	ctrl, err := NewController(cfg, client, logger)
	if err != nil {
		return fmt.Errorf("init stream controller: %w", err)
	}
	defer ctrl.Close()

	logger.Info("periscope starting",
		zap.String("api_base", cfg.APIBase),
		zap.String("content_field", cfg.ContentField),
		zap.String("client_id", ctrl.Snapshot().Params.ClientID))

	// Populate the table before the first frame is drawn.
	if err := store.Refresh(ctx); err != nil {
		logger.Warn("initial data refresh failed", zap.Error(err))
	}

	return ui.Run(ui.Options{
		Context:    ctx,
		API:        client,
		Store:      store,
		Health:     health,
		Controller: ctrl,
		Config:     &cfg,
		Logger:     logger,
		ThemeName:  userPrefs.Theme,
		PrefsPath:  opts.PrefsPath,
	})
}

// LoadConfig reads the config file and applies an explicit API base override.
func LoadConfig(path, apiBase string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(apiBase); v != "" {
		cfg.APIBase = v
	}
	return cfg, nil
}

// NewClient builds the typed API client described by cfg.
func NewClient(cfg config.Config) (*api.Client, error) {
	hc, err := fetch.NewClient(cfg.APIBase, fetch.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return nil, err
	}
	return api.New(hc, api.WithContentField(cfg.ContentField)), nil
}

// NewController builds an idle stream controller over client using the
// stream settings in cfg. The caller must Close it.
func NewController(cfg config.Config, client *api.Client, logger *zap.Logger) (*stream.Controller, error) {
	return stream.New(stream.Options{
		Backend:           client,
		Connector:         stream.MJPEGConnector{Client: client.HTTPClient()},
		Logger:            logger,
		Grayscale:         cfg.Stream.Grayscale,
		Width:             cfg.Stream.Width,
		ReconnectDelay:    cfg.Stream.ReconnectDelay,
		ConnectTimeout:    cfg.Stream.ConnectTimeout,
		FramePollInterval: cfg.Stream.FramePollInterval,
	})
}
