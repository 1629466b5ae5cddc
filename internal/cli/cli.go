// Package cli implements the stylewct command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stylewct/pkg/cache"
	"github.com/matzehuels/stylewct/pkg/config"
	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/model"
	"github.com/matzehuels/stylewct/pkg/pipeline"
	"github.com/matzehuels/stylewct/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "stylewct"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	verbose    bool
	cfg        config.Config
}

// New creates a new CLI instance with a default logger and the built-in
// settings. The settings file is read when a command runs.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// loadConfig reads --config, or the default settings file when it exists.
func (c *CLI) loadConfig() error {
	path, optional := c.configPath, false
	if path == "" {
		path, optional = config.DefaultPath(), true
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.Logger.Debug("settings loaded", "path", path)
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner backed by the configured model and
// cache. A non-empty scope namespaces the cache keys.
func (c *CLI) newRunner(ctx context.Context, noCache bool, scope string) (*pipeline.Runner, error) {
	m, err := model.NewModel(c.cfg.Model)
	if err != nil {
		return nil, err
	}
	cc, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	var keyer cache.Keyer = cache.NewDefaultKeyer()
	if scope != "" {
		keyer = cache.NewScopedKeyer(keyer, scope)
	}
	runner := pipeline.NewRunner(m, cc, keyer, c.Logger)
	runner.TTL = c.cfg.Cache.TTL.Duration
	return runner, nil
}

// newCache opens the configured cache backend. A file cache that cannot be
// created degrades to no caching; an unreachable Redis is an error.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	cfg := c.cfg.Cache
	if noCache || cfg.Backend == config.BackendNone {
		return cache.NewNullCache(), nil
	}
	if cfg.Backend == config.BackendRedis {
		return cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	dir, err := c.cacheDir()
	if err != nil {
		c.Logger.Warn("caching disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warn("caching disabled", "dir", dir, "err", err)
		return cache.NewNullCache(), nil
	}
	return fc, nil
}

// newStore opens the run history. Without a MongoDB URI there is nowhere to
// keep runs across invocations, so nil is returned.
func (c *CLI) newStore(ctx context.Context) (store.Store, error) {
	cfg := c.cfg.Store
	if cfg.MongoURI == "" {
		return nil, nil
	}
	s, err := store.NewMongoStore(ctx, store.MongoOptions{
		URI:        cfg.MongoURI,
		Database:   cfg.Database,
		Collection: cfg.Collection,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "connect run store")
	}
	return s, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory, or the XDG default
// (~/.cache/stylewct/).
func (c *CLI) cacheDir() (string, error) {
	if c.cfg.Cache.Dir != "" {
		return c.cfg.Cache.Dir, nil
	}
	return cacheDir()
}

func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
