// Package app wires configuration, storage, the bot, the scheduler and the
// admin API into a running process.
package app

import (
	"log/slog"

	"dailysender/internal/broadcast"
	"dailysender/internal/config"
	"dailysender/internal/platform/logger"
)

const appName = "dailysender"

// App wires application components.
type App struct {
	cfg config.Config
	log *slog.Logger
}

// Option adjusts App construction.
type Option func(*config.Config)

// WithConsoleLevel overrides LOG_CONSOLE_LEVEL. CLI commands use it to keep
// their stdout readable.
func WithConsoleLevel(level string) Option {
	return func(c *config.Config) { c.Log.ConsoleLevel = level }
}

// New creates a new App instance and loads configuration.
func New(opts ...Option) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          appName,
	})
	return &App{cfg: cfg, log: log}, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the root logger.
func (a *App) Logger() *slog.Logger { return a.log }

// Close flushes and closes the log file.
func (a *App) Close() error { return logger.Close(a.log) }

func (a *App) broadcastConfig() broadcast.Config {
	return broadcast.Config{
		MediaDir: a.cfg.MediaDir(),
		Template: a.cfg.Broadcast.Template,
		Location: a.cfg.Location,
		Workers:  a.cfg.Broadcast.Workers,
		Rate:     a.cfg.Broadcast.Rate,
	}
}
