// Package pipeline runs multi-level WCT style transfer.
//
// A content/style pair is stylized by walking an ordered list of abstraction
// levels (coarse to fine by default). At every level the content and style
// features are matched with a whitening and coloring transform, blended with
// the original content features, and decoded back to an image. From the
// second level on, the running result is re-encoded so that each level
// refines the output of the previous one.
//
// # Usage
//
// Build a [Model] once and share it:
//
//	m, err := pipeline.NewModel("pyramid", enc, dec)
//	runner := pipeline.NewRunner(m, cache, nil, logger)
//	opts := pipeline.DefaultOptions()
//	result, err := runner.Execute(ctx, pipeline.Pair{Name: "cat", Content: c, Style: s}, opts)
//
// Run many pairs in parallel:
//
//	results, err := runner.Batch(ctx, pairs, opts, 4)
//
// [Stylize] is the cache-free core used by [Runner].
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stylewct/pkg/blend"
	"github.com/matzehuels/stylewct/pkg/cache"
	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/tensor"
	"github.com/matzehuels/stylewct/pkg/wct"
)

// DefaultWorkers is the default batch parallelism.
const DefaultWorkers = 2

// Options configures one stylization. It supports JSON and TOML decoding so
// the server and config file can populate it directly.
//
// The zero value is not ready to use: weights of zero are meaningful (gamma
// = 0 reproduces the content), so start from [DefaultOptions].
type Options struct {
	Targets         []Level    `json:"targets,omitempty" toml:"targets"`
	Method          wct.Method `json:"method,omitempty" toml:"method"`
	Gamma           float64    `json:"gamma" toml:"gamma"`
	Delta           float64    `json:"delta" toml:"delta"`
	Saliency        bool       `json:"saliency,omitempty" toml:"saliency"`
	Schedule        bool       `json:"schedule,omitempty" toml:"schedule"`
	ReverseSchedule bool       `json:"reverse_schedule,omitempty" toml:"reverse_schedule"`

	// Refresh skips the result cache lookup (the result is still stored).
	Refresh bool `json:"refresh,omitempty" toml:"-"`

	Logger *log.Logger `json:"-" toml:"-"`
}

// DefaultOptions returns options with the default targets, method and
// weights (gamma 0.8, delta 0.9).
func DefaultOptions() Options {
	return Options{
		Targets: append([]Level(nil), DefaultTargets...),
		Method:  wct.DefaultMethod,
		Gamma:   blend.DefaultGamma,
		Delta:   blend.DefaultDelta,
	}
}

// ValidateAndSetDefaults checks the options and fills in empty targets,
// method and logger. It is idempotent and runs in full on every call, so a
// copy modified after validation is checked again.
//
// Saliency modulation and level scheduling both derive (g, d) and cannot be
// combined; asking for both is an INVALID_CONFIG error.
func (o *Options) ValidateAndSetDefaults() error {
	if len(o.Targets) == 0 {
		o.Targets = append([]Level(nil), DefaultTargets...)
	}
	if o.Method == "" {
		o.Method = wct.DefaultMethod
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	if err := errors.ValidateLevels(levelStrings(o.Targets)); err != nil {
		return err
	}
	if _, err := wct.ParseMethod(string(o.Method)); err != nil {
		return err
	}
	if err := o.Weights().Validate(); err != nil {
		return err
	}
	if o.Saliency && o.Schedule {
		return errors.New(errors.ErrCodeInvalidConfig,
			"saliency modulation and level scheduling cannot be combined")
	}
	if o.ReverseSchedule && !o.Schedule {
		return errors.New(errors.ErrCodeInvalidConfig, "reverse_schedule requires schedule")
	}
	return nil
}

// Weights returns the scalar blend weights.
func (o *Options) Weights() blend.Weights {
	return blend.Weights{Gamma: o.Gamma, Delta: o.Delta}
}

// BlendMode returns the blend mode selected by the toggles.
func (o *Options) BlendMode() blend.Mode {
	switch {
	case o.Saliency:
		return blend.ModeSaliency
	case o.Schedule:
		return blend.ModeSchedule
	default:
		return blend.ModeConstant
	}
}

// KeyOpts returns the cache key options for a result produced by model.
func (o *Options) KeyOpts(model string) cache.ResultKeyOpts {
	return cache.ResultKeyOpts{
		Model:           model,
		Method:          string(o.Method),
		Targets:         levelStrings(o.Targets),
		Gamma:           o.Gamma,
		Delta:           o.Delta,
		Mode:            string(o.BlendMode()),
		ReverseSchedule: o.ReverseSchedule,
	}
}

// Pair is one content/style job. Saliency is only read when
// Options.Saliency is set, and is then required.
type Pair struct {
	Name     string
	Content  *tensor.Tensor
	Style    *tensor.Tensor
	Saliency *blend.Saliency
}

func (p Pair) validate(opts *Options) error {
	if p.Content == nil {
		return errors.New(errors.ErrCodeInvalidInput, "content image is required")
	}
	if p.Style == nil {
		return errors.New(errors.ErrCodeInvalidInput, "style image is required")
	}
	if opts.Saliency && p.Saliency == nil {
		return errors.New(errors.ErrCodeInvalidInput, "saliency modulation requires a saliency map")
	}
	return nil
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Image is the final stylized image.
	Image *tensor.Tensor

	// Key is the cache key the result is stored under.
	Key string

	// Stats contains timing information. Levels is empty on a cache hit.
	Stats Stats

	// CacheHit reports whether Image came from the cache.
	CacheHit bool
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Levels []LevelStat
	Total  time.Duration
}

// LevelStat is the wall time spent on one level.
type LevelStat struct {
	Level    Level
	Duration time.Duration
}
