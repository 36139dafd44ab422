// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Wiring of config, logging, client, lifecycle and archive.

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/termsage/internal/commands"
	"github.com/jeranaias/termsage/internal/config"
	"github.com/jeranaias/termsage/internal/lifecycle"
	"github.com/jeranaias/termsage/internal/logging"
	"github.com/jeranaias/termsage/internal/ollama"
	"github.com/jeranaias/termsage/internal/session"
	"github.com/jeranaias/termsage/internal/storage"
)

// Flags holds the global command line flags.
type Flags struct {
	ConfigPath  string
	Model       string
	URL         string
	NoAutoStart bool
	Verbose     bool
}

// App holds every long-lived component of a termsage process.
type App struct {
	Config *config.Config
	// SavePath is where the session snapshot is written on exit.
	SavePath string

	Logger      *zap.Logger
	Client      *ollama.Client
	Coordinator *lifecycle.Coordinator
	Finder      lifecycle.ProcessFinder
	Models      *session.ModelCache
	Archive     *storage.Archive // nil when disabled or unavailable

	Out io.Writer
	Err io.Writer

	// start is the session settings as loaded, overrides included.
	start    session.Snapshot
	closeLog func() error
}

// NewApp loads configuration and builds the components. A configuration
// error is returned as *config.LoadError or *StartupError; everything
// else degrades with a warning on errOut.
func NewApp(flags Flags, out, errOut io.Writer) (*App, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Out: out, Err: errOut, start: cfg.Snapshot()}

	app.SavePath, err = savePath(flags.ConfigPath)
	if err != nil {
		return nil, &StartupError{Stage: "config", Err: err}
	}

	app.Logger, app.closeLog = openLogger(cfg, flags.Verbose, errOut)

	app.Client = ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL: cfg.Service.URL,
		Timeout: cfg.Service.RequestTimeout(),
	})
	app.Finder = lifecycle.NameFinder{Name: cfg.Service.ProcessName}
	app.Coordinator = lifecycle.New(
		app.Client,
		lifecycle.NewCommandSpawner(cfg.Service.Command, cfg.Service.Args),
		app.Finder,
		lifecycle.Config{
			AutoStart:    cfg.AutoStartService,
			PollInterval: cfg.Service.PollInterval(),
		},
		app.Logger,
	)
	app.Models = session.NewModelCache(app.Client)

	if cfg.Archive.Enabled {
		app.Archive = openArchive(cfg, app.Logger, errOut)
	}

	app.Logger.Info("termsage starting",
		zap.String("version", Version),
		zap.String("service_url", cfg.Service.URL),
		zap.Bool("auto_start", cfg.AutoStartService),
		zap.Bool("archive", app.Archive != nil))
	return app, nil
}

func loadConfig(flags Flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.ConfigPath != "" {
		cfg, err = config.LoadFromPath(flags.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flags.Model != "" {
		cfg.ActiveModel = strings.TrimSpace(flags.Model)
	}
	if flags.URL != "" {
		cfg.Service.URL = flags.URL
	}
	if flags.NoAutoStart {
		cfg.AutoStartService = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, &StartupError{Stage: "flags", Err: err}
	}
	return cfg, nil
}

// savePath picks the file the snapshot is written to: the --config file,
// else the existing config file, else a new config.toml.
func savePath(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	if found := config.FindConfigFile(dir); found != "" {
		return found, nil
	}
	return config.ConfigPathTOML()
}

func openLogger(cfg *config.Config, verbose bool, errOut io.Writer) (*zap.Logger, func() error) {
	path, err := cfg.LogPath()
	if err == nil {
		var (
			logger  *zap.Logger
			closeFn func() error
		)
		logger, closeFn, err = logging.New(logging.Options{
			Path:    path,
			Level:   cfg.Logging.Level,
			Verbose: verbose,
		})
		if err == nil {
			return logger, closeFn
		}
	}
	fmt.Fprintf(errOut, "%s logging disabled: %v\n", WarningStyle.Render("Warning:"), err)
	return zap.NewNop(), func() error { return nil }
}

func openArchive(cfg *config.Config, logger *zap.Logger, errOut io.Writer) *storage.Archive {
	path, err := cfg.ArchivePath()
	if err == nil {
		var archive *storage.Archive
		if archive, err = storage.OpenArchive(path); err == nil {
			return archive
		}
	}
	logger.Warn("chat archive unavailable", zap.Error(err))
	fmt.Fprintf(errOut, "%s chat history disabled: %v\n", WarningStyle.Render("Warning:"), err)
	return nil
}

// NewSession creates the initial session from the loaded configuration.
func (a *App) NewSession() session.Session {
	return session.New(a.Config.Snapshot(), a.Models)
}

// NewDispatcher builds a dispatcher over the app's components. onChunk
// receives streamed chat text.
func (a *App) NewDispatcher(onChunk func(string)) *commands.Dispatcher {
	opts := commands.Options{
		Service:      a.Client,
		Readiness:    a.Coordinator,
		ReadyTimeout: a.Config.Service.StartupTimeout(),
		OnChunk:      onChunk,
		Logger:       a.Logger,
	}
	// A nil *storage.Archive must not become a non-nil interface.
	if a.Archive != nil {
		opts.Archive = a.Archive
	}
	return commands.NewDispatcher(opts)
}

// SaveSession writes the session fields changed during this run to
// SavePath. The file is re-read so flag and environment overrides, and
// settings the session never touched, are left as the file has them.
func (a *App) SaveSession(s session.Session) error {
	file, err := config.ReadFile(a.SavePath)
	if err == nil {
		snap := config.MergeSnapshot(file.Snapshot(), a.start, s.Snapshot())
		err = config.SaveSnapshot(a.SavePath, file, snap)
	}
	if err != nil {
		a.Logger.Warn("failed to save settings", zap.String("path", a.SavePath), zap.Error(err))
		return err
	}
	a.Logger.Debug("settings saved", zap.String("path", a.SavePath))
	return nil
}

// Close releases the archive and flushes the log.
func (a *App) Close() error {
	var errs []error
	if a.Archive != nil {
		errs = append(errs, a.Archive.Close())
	}
	a.Logger.Info("termsage stopped")
	if a.closeLog != nil {
		errs = append(errs, a.closeLog())
	}
	return errors.Join(errs...)
}
