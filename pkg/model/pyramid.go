// Package model provides a deterministic encoder/decoder pair that needs no
// pretrained weights.
//
// The [Pyramid] treats level "reluK_1" as the image average-pooled by
// 2^(K-1) and lifted into Channels feature channels by a fixed 1×1
// convolution whose kernel has orthonormal columns. Decoding applies the
// transposed kernel, clamps to [0, 1] and upsamples back with nearest
// neighbour replication. Lifting and projecting back is lossless at the
// pooled resolution, so the pipeline's transforms are the only thing that
// changes the image.
package model

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/pipeline"
)

// Defaults for Config.
const (
	DefaultChannels      = 16
	DefaultImageChannels = 3
	DefaultSeed          = uint64(42)

	// MaxDepth is the deepest supported level (relu5_1).
	MaxDepth = 5
)

// Name identifies the pyramid model in cache keys.
const Name = "pyramid"

// Config configures a Pyramid.
type Config struct {
	Channels      int    `toml:"channels" json:"channels"`             // feature channels, >= ImageChannels
	ImageChannels int    `toml:"image_channels" json:"image_channels"` // 1 (gray) or 3 (RGB)
	Seed          uint64 `toml:"seed" json:"seed"`
}

// Pyramid is the built-in model. It is immutable and safe for concurrent use.
type Pyramid struct {
	cfg Config

	// kernel is the Channels×ImageChannels lift with orthonormal columns.
	kernel *mat.Dense
}

// New builds a pyramid model. Zero fields in cfg take their defaults.
func New(cfg Config) (*Pyramid, error) {
	if cfg.Channels == 0 {
		cfg.Channels = DefaultChannels
	}
	if cfg.ImageChannels == 0 {
		cfg.ImageChannels = DefaultImageChannels
	}
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}
	if cfg.ImageChannels != 1 && cfg.ImageChannels != 3 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "image channels must be 1 or 3, got %d", cfg.ImageChannels)
	}
	if cfg.Channels < cfg.ImageChannels {
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"feature channels (%d) must be at least the image channels (%d)", cfg.Channels, cfg.ImageChannels)
	}
	return &Pyramid{cfg: cfg, kernel: orthonormalKernel(cfg.Channels, cfg.ImageChannels, cfg.Seed)}, nil
}

// NewModel wraps a pyramid as the pipeline's encoder and decoder.
func NewModel(cfg Config) (*pipeline.Model, error) {
	p, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.NewModel(Name, p, p)
}

// Config returns the effective configuration.
func (p *Pyramid) Config() Config { return p.cfg }

// Kernel returns a copy of the lift kernel.
func (p *Pyramid) Kernel() *mat.Dense { return mat.DenseCopyOf(p.kernel) }

// orthonormalKernel draws a seeded Gaussian rows×cols matrix and keeps the
// first cols columns of its QR factor.
func orthonormalKernel(rows, cols int, seed uint64) *mat.Dense {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	g := mat.NewDense(rows, cols, nil)
	for i := range rows {
		for j := range cols {
			g.Set(i, j, r.NormFloat64())
		}
	}
	var qr mat.QR
	qr.Factorize(g)
	var q mat.Dense
	qr.QTo(&q)
	return mat.DenseCopyOf(q.Slice(0, rows, 0, cols))
}

// factor returns the pooling factor of a level.
func factor(level pipeline.Level) (int, error) {
	k := level.Depth()
	if k < 1 || k > MaxDepth {
		return 0, errors.New(errors.ErrCodeInvalidLevel,
			"pyramid model supports relu1_1 to relu%d_1, got %q", MaxDepth, level)
	}
	return 1 << (k - 1), nil
}

// Alignment returns the factor image sides must be divisible by to run
// levels.
func Alignment(levels []pipeline.Level) (int, error) {
	align := 1
	for _, l := range levels {
		f, err := factor(l)
		if err != nil {
			return 0, err
		}
		align = max(align, f)
	}
	return align, nil
}
