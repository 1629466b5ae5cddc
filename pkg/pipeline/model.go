package pipeline

import (
	"context"

	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/tensor"
)

// FeatureExtractor encodes an image into features at one level.
// Implementations must be deterministic and safe for concurrent use.
type FeatureExtractor interface {
	Extract(ctx context.Context, img *tensor.Tensor, level Level) (*tensor.Tensor, error)
}

// LevelsExtractor is implemented by encoders that can produce several levels
// in one forward pass. The result has one tensor per level, in order.
type LevelsExtractor interface {
	FeatureExtractor
	ExtractLevels(ctx context.Context, img *tensor.Tensor, levels []Level) ([]*tensor.Tensor, error)
}

// FeatureSynthesizer decodes features of one level back into an image.
// Implementations must be deterministic and safe for concurrent use.
type FeatureSynthesizer interface {
	Synthesize(ctx context.Context, level Level, features *tensor.Tensor) (*tensor.Tensor, error)
}

// Model is the immutable encoder/decoder handle shared by all pairs.
type Model struct {
	Name    string
	Encoder FeatureExtractor
	Decoder FeatureSynthesizer
}

// NewModel builds a model handle. The name becomes part of cache keys.
func NewModel(name string, enc FeatureExtractor, dec FeatureSynthesizer) (*Model, error) {
	if enc == nil || dec == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "model needs both an encoder and a decoder")
	}
	if name == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "model name is required")
	}
	return &Model{Name: name, Encoder: enc, Decoder: dec}, nil
}

// encode extracts one level and checks that the encoder produced something.
func (m *Model) encode(ctx context.Context, img *tensor.Tensor, level Level) (*tensor.Tensor, error) {
	f, err := m.Encoder.Extract(ctx, img, level)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncoder, err, "encode at %s", level)
	}
	if f == nil {
		return nil, errors.New(errors.ErrCodeEncoder, "encoder returned no features at %s", level)
	}
	return f, nil
}

// encodeAll extracts every level, in one pass when the encoder supports it.
func (m *Model) encodeAll(ctx context.Context, img *tensor.Tensor, levels []Level) ([]*tensor.Tensor, error) {
	if le, ok := m.Encoder.(LevelsExtractor); ok {
		fs, err := le.ExtractLevels(ctx, img, levels)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeEncoder, err, "encode levels %v", levels)
		}
		if len(fs) != len(levels) {
			return nil, errors.New(errors.ErrCodeEncoder,
				"encoder returned %d feature tensors for %d levels", len(fs), len(levels))
		}
		for i, f := range fs {
			if f == nil {
				return nil, errors.New(errors.ErrCodeEncoder, "encoder returned no features at %s", levels[i])
			}
		}
		return fs, nil
	}

	fs := make([]*tensor.Tensor, len(levels))
	for i, level := range levels {
		f, err := m.encode(ctx, img, level)
		if err != nil {
			return nil, err
		}
		fs[i] = f
	}
	return fs, nil
}

// decode synthesizes an image and checks that the decoder produced one.
func (m *Model) decode(ctx context.Context, level Level, features *tensor.Tensor) (*tensor.Tensor, error) {
	img, err := m.Decoder.Synthesize(ctx, level, features)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecoder, err, "decode at %s", level)
	}
	if img == nil {
		return nil, errors.New(errors.ErrCodeDecoder, "decoder returned no image at %s", level)
	}
	return img, nil
}
