package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/stylewct/pkg/blend"
	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/tensor"
	"github.com/matzehuels/stylewct/pkg/wct"
)

// levelFunc observes the end of each level, successful or not.
type levelFunc func(level Level, d time.Duration, err error)

// Stylize runs the level loop for one pair and returns the final image.
//
// Content and style features are extracted for all levels up front. At
// level i the running result is re-encoded (level 0 uses the original
// content features), both candidates are transformed against the style
// features, blended, and decoded into the new running result.
//
// The context is checked between levels; a level in progress is never
// interrupted. On any failure Stylize returns a nil image.
func Stylize(ctx context.Context, m *Model, pair Pair, opts Options) (*tensor.Tensor, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return stylize(ctx, m, pair, &opts, nil)
}

func stylize(ctx context.Context, m *Model, pair Pair, opts *Options, onLevel levelFunc) (*tensor.Tensor, error) {
	if m == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "model is required")
	}
	if err := pair.validate(opts); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled(err, opts.Targets[0])
	}

	levels := opts.Targets
	origs, err := m.encodeAll(ctx, pair.Content, levels)
	if err != nil {
		return nil, err
	}
	styles, err := m.encodeAll(ctx, pair.Style, levels)
	if err != nil {
		return nil, err
	}

	var factors []float64
	if opts.Schedule {
		factors = blend.Schedule(len(levels), opts.ReverseSchedule)
	}

	current := pair.Content
	for i, level := range levels {
		if err := ctx.Err(); err != nil {
			return nil, canceled(err, level)
		}
		opts.Logger.Debug("stylizing at level", "pair", pair.Name, "level", level)

		start := time.Now()
		next, err := stylizeLevel(ctx, m, current, origs[i], styles[i], i, level, opts, pair.Saliency, factors)
		if onLevel != nil {
			onLevel(level, time.Since(start), err)
		}
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// stylizeLevel performs one transition of the level loop.
func stylizeLevel(ctx context.Context, m *Model, current, eIorig, eIs *tensor.Tensor, i int, level Level,
	opts *Options, sal *blend.Saliency, factors []float64) (*tensor.Tensor, error) {
	eIlast := eIorig
	if i > 0 {
		var err error
		if eIlast, err = m.encode(ctx, current, level); err != nil {
			return nil, err
		}
	}

	csLast, err := wct.Transform(eIlast, eIs, opts.Method)
	if err != nil {
		return nil, wrapStage(err, "transform at %s", level)
	}
	csOrig := csLast
	if i > 0 {
		if csOrig, err = wct.Transform(eIorig, eIs, opts.Method); err != nil {
			return nil, wrapStage(err, "transform at %s", level)
		}
	}

	p := blend.Params{Weights: opts.Weights(), Mode: opts.BlendMode()}
	switch p.Mode {
	case blend.ModeSaliency:
		p.Saliency = sal
	case blend.ModeSchedule:
		p.Factor = factors[i]
	}
	blended, err := blend.Blend(csLast, csOrig, eIorig, p)
	if err != nil {
		return nil, wrapStage(err, "blend at %s", level)
	}

	return m.decode(ctx, level, blended)
}

func canceled(err error, level Level) error {
	return errors.Wrap(errors.ErrCodeTimeout, err, "stylize stopped before %s", level)
}

// wrapStage adds level context to an error from a pure stage and keeps its
// code.
func wrapStage(err error, format string, args ...any) error {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	return errors.Wrap(code, err, format, args...)
}
