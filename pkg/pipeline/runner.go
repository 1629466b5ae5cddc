package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stylewct/pkg/cache"
	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/observability"
	"github.com/matzehuels/stylewct/pkg/tensor"
)

// Runner wraps Stylize with result caching, timing and hooks.
// Both the CLI and the server use it.
//
// The Runner holds no per-pair state, so multiple goroutines can share one
// Runner with different options.
type Runner struct {
	Model  *Model
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// TTL is the lifetime of cached results; zero means cache.TTLResult.
	TTL time.Duration
}

// NewRunner creates a runner for model.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(m *Model, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Model:  m,
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute stylizes one pair, serving it from the cache when possible.
func (r *Runner) Execute(ctx context.Context, pair Pair, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if r.Model == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "runner has no model")
	}
	if err := pair.validate(&opts); err != nil {
		return nil, err
	}

	start := time.Now()
	key, err := r.resultKey(pair, &opts)
	if err != nil {
		return nil, err
	}

	if !opts.Refresh {
		if img, ok := r.lookup(ctx, key); ok {
			opts.Logger.Debug("result cache hit", "pair", pair.Name, "key", key)
			return &Result{
				Image:    img,
				Key:      key,
				Stats:    Stats{Total: time.Since(start)},
				CacheHit: true,
			}, nil
		}
	}

	hooks := observability.Pipeline()
	hooks.OnPairStart(ctx, pair.Name, len(opts.Targets))

	result := &Result{Key: key}
	img, err := stylize(ctx, r.Model, pair, &opts, func(level Level, d time.Duration, err error) {
		hooks.OnLevelComplete(ctx, pair.Name, string(level), d, err)
		if err == nil {
			result.Stats.Levels = append(result.Stats.Levels, LevelStat{Level: level, Duration: d})
		}
	})
	result.Stats.Total = time.Since(start)
	hooks.OnPairComplete(ctx, pair.Name, result.Stats.Total, err)
	if err != nil {
		return nil, err
	}
	result.Image = img

	r.store(ctx, key, img)
	return result, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// resultKey hashes the pair's inputs together with every output-affecting
// option.
func (r *Runner) resultKey(pair Pair, opts *Options) (string, error) {
	var in cache.InputHashes
	for _, t := range []struct {
		dst *string
		src *tensor.Tensor
	}{{&in.Content, pair.Content}, {&in.Style, pair.Style}} {
		data, err := t.src.MarshalBinary()
		if err != nil {
			return "", err
		}
		*t.dst = cache.Hash(data)
	}
	if opts.Saliency {
		data, err := pair.Saliency.MarshalBinary()
		if err != nil {
			return "", err
		}
		in.Saliency = cache.Hash(data)
	}
	return r.Keyer.ResultKey(in, opts.KeyOpts(r.Model.Name)), nil
}

// lookup returns a cached image. Cache errors and corrupt entries are misses.
func (r *Runner) lookup(ctx context.Context, key string) (*tensor.Tensor, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("result cache lookup failed", "err", err)
	}
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "result")
		return nil, false
	}

	raw, err := cache.Decompress(data)
	if err == nil {
		img := new(tensor.Tensor)
		if err = img.UnmarshalBinary(raw); err == nil {
			observability.Cache().OnCacheHit(ctx, "result")
			return img, true
		}
	}
	r.Logger.Warn("discarding corrupt cache entry", "key", key, "err", err)
	_ = r.Cache.Delete(ctx, key)
	observability.Cache().OnCacheMiss(ctx, "result")
	return nil, false
}

// store writes img to the cache. Failures are logged and ignored.
func (r *Runner) store(ctx context.Context, key string, img *tensor.Tensor) {
	raw, err := img.MarshalBinary()
	if err != nil {
		r.Logger.Warn("cannot encode result for cache", "err", err)
		return
	}
	data, err := cache.Compress(raw)
	if err != nil {
		r.Logger.Warn("cannot compress result for cache", "err", err)
		return
	}
	if err := r.Cache.Set(ctx, key, data, r.ttl()); err != nil {
		r.Logger.Warn("result cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "result", len(data))
}

func (r *Runner) ttl() time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return cache.TTLResult
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
