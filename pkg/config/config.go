// Package config loads stylewct settings from a TOML file.
//
// Every section is optional and missing keys keep their defaults:
//
//	[transfer]
//	method = "closed-form"
//	targets = ["relu5_1", "relu4_1", "relu3_1"]
//	gamma = 0.8
//	delta = 0.9
//	saliency = false
//	schedule = true
//	reverse_schedule = false
//	workers = 4
//
//	[model]
//	channels = 16
//	seed = 42
//
//	[image]
//	fine_size = 512
//	gray = false
//	max_pixels = 40000000
//
//	[cache]
//	backend = "redis"          # file | redis | none
//	redis_addr = "localhost:6379"
//	ttl = "72h"
//
//	[store]
//	mongo_uri = "mongodb://localhost:27017"
//
//	[server]
//	addr = ":8080"
//
// Command-line flags override file values.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stylewct/pkg/blend"
	"github.com/matzehuels/stylewct/pkg/cache"
	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/imageio"
	"github.com/matzehuels/stylewct/pkg/model"
	"github.com/matzehuels/stylewct/pkg/pipeline"
	"github.com/matzehuels/stylewct/pkg/wct"
)

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Config is the full settings file.
type Config struct {
	Transfer Transfer        `toml:"transfer"`
	Model    model.Config    `toml:"model"`
	Image    imageio.Options `toml:"image"`
	Cache    Cache           `toml:"cache"`
	Store    Store           `toml:"store"`
	Server   Server          `toml:"server"`
}

// Transfer holds the stylization options.
type Transfer struct {
	Method          string   `toml:"method"`
	Targets         []string `toml:"targets"`
	Gamma           float64  `toml:"gamma"`
	Delta           float64  `toml:"delta"`
	Saliency        bool     `toml:"saliency"`
	Schedule        bool     `toml:"schedule"`
	ReverseSchedule bool     `toml:"reverse_schedule"`
	Workers         int      `toml:"workers"`
}

// Cache selects and configures the result cache.
type Cache struct {
	Backend       string   `toml:"backend"`
	Dir           string   `toml:"dir"` // file backend; empty means the user cache dir
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	TTL           Duration `toml:"ttl"`
}

// Store configures the run history. An empty MongoURI keeps it in memory.
type Store struct {
	MongoURI   string `toml:"mongo_uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Server configures the HTTP API.
type Server struct {
	Addr        string `toml:"addr"`
	MaxUploadMB int    `toml:"max_upload_mb"`
}

// Duration is a time.Duration written as a string such as "36h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in settings.
func Default() Config {
	targets := make([]string, len(pipeline.DefaultTargets))
	for i, l := range pipeline.DefaultTargets {
		targets[i] = string(l)
	}
	return Config{
		Transfer: Transfer{
			Method:  string(wct.DefaultMethod),
			Targets: targets,
			Gamma:   blend.DefaultGamma,
			Delta:   blend.DefaultDelta,
			Workers: pipeline.DefaultWorkers,
		},
		Model: model.Config{
			Channels:      model.DefaultChannels,
			ImageChannels: model.DefaultImageChannels,
			Seed:          model.DefaultSeed,
		},
		Cache: Cache{
			Backend:   BackendFile,
			RedisAddr: "localhost:6379",
			TTL:       Duration{cache.TTLResult},
		},
		Store: Store{
			Database:   "stylewct",
			Collection: "runs",
		},
		Server: Server{
			Addr:        ":8080",
			MaxUploadMB: 32,
		},
	}
}

// DefaultPath returns the settings file location under the user config
// directory, e.g. ~/.config/stylewct/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "stylewct", "config.toml")
}

// Load reads the file at path on top of the defaults. With optional set, a
// missing file yields the defaults instead of an error.
func Load(path string, optional bool) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) && optional {
		return Default(), nil
	}
	if os.IsNotExist(err) {
		return Config{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file not found: %s", path)
	}
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "config %s", path)
	}
	return cfg, nil
}

// Decode parses TOML from r on top of the defaults and validates it.
// Unknown keys are rejected so that typos do not pass silently.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.ErrCodeInvalidConfig, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that the decoder cannot.
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case BackendFile, BackendRedis, BackendNone:
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"invalid cache backend %q (must be one of: file, redis, none)", c.Cache.Backend)
	}
	if c.Transfer.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "workers cannot be negative")
	}
	if c.Image.FineSize < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "fine_size cannot be negative")
	}
	if c.Image.MaxPixels < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "max_pixels cannot be negative")
	}
	opts, err := c.Options()
	if err != nil {
		return err
	}
	return opts.ValidateAndSetDefaults()
}

// Options converts the transfer section to pipeline options.
func (c Config) Options() (pipeline.Options, error) {
	t := c.Transfer
	targets, err := pipeline.ParseLevels(t.Targets)
	if err != nil {
		return pipeline.Options{}, err
	}
	method, err := wct.ParseMethod(t.Method)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Targets:         targets,
		Method:          method,
		Gamma:           t.Gamma,
		Delta:           t.Delta,
		Saliency:        t.Saliency,
		Schedule:        t.Schedule,
		ReverseSchedule: t.ReverseSchedule,
	}, nil
}
