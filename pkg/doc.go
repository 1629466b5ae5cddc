// Package pkg provides the core libraries for stylewct style transfer.
//
// # Overview
//
// Stylewct renders a content image in the style of another by matching
// feature statistics level by level, from the most abstract features to the
// finest. The pkg directory is organized into four areas:
//
//  1. Math: [tensor] feature maps, [wct] statistics and transforms, [blend]
//     weight modulation
//  2. Orchestration: [pipeline] level loop, runner and batches; [model]
//     a deterministic pyramid encoder/decoder
//  3. Infrastructure: [cache] result caching (file, Redis), [store] run
//     history (memory, MongoDB), [config] TOML settings, [observability] hooks
//  4. I/O: [imageio] image decoding, encoding and output naming
//
// # Architecture
//
// The data flow for one content/style pair:
//
//	content + style images
//	         ↓
//	    [imageio] (decode, resize, to tensors)
//	         ↓
//	    [pipeline] for each target level, deepest first:
//	         encode → [wct] transform → [blend] → decode
//	         ↓
//	    [imageio] (PNG, JPEG or BMP)
//
// # Quick Start
//
//	m, _ := model.NewModel(model.Config{})
//	runner := pipeline.NewRunner(m, nil, nil, nil)
//	res, err := runner.Execute(ctx, pipeline.Pair{Name: "cat-starry", Content: c, Style: s},
//	    pipeline.DefaultOptions())
//
// [tensor]: github.com/matzehuels/stylewct/pkg/tensor
// [wct]: github.com/matzehuels/stylewct/pkg/wct
// [blend]: github.com/matzehuels/stylewct/pkg/blend
// [pipeline]: github.com/matzehuels/stylewct/pkg/pipeline
// [model]: github.com/matzehuels/stylewct/pkg/model
// [cache]: github.com/matzehuels/stylewct/pkg/cache
// [store]: github.com/matzehuels/stylewct/pkg/store
// [config]: github.com/matzehuels/stylewct/pkg/config
// [observability]: github.com/matzehuels/stylewct/pkg/observability
// [imageio]: github.com/matzehuels/stylewct/pkg/imageio
package pkg
