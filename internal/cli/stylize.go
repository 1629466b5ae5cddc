package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/imageio"
	"github.com/matzehuels/stylewct/pkg/model"
	"github.com/matzehuels/stylewct/pkg/pipeline"
	"github.com/matzehuels/stylewct/pkg/store"
	"github.com/matzehuels/stylewct/pkg/wct"
)

// stylizeOpts holds the command-line flags for the stylize command.
// Flags left unset fall back to the settings file.
type stylizeOpts struct {
	content     string // single content image
	style       string // single style image
	saliency    string // saliency map for the single content image
	contentDir  string // directory of content images
	styleDir    string // directory of style images, matched by name
	saliencyDir string // directory of saliency maps, matched by name
	outDir      string
	format      string // output extension: png, jpg or bmp

	fineSize int
	gray     bool

	method          string
	targets         []string
	gamma           float64
	delta           float64
	schedule        bool
	reverseSchedule bool

	workers int
	noCache bool
	refresh bool
}

// stylizeCommand creates the stylize command.
func (c *CLI) stylizeCommand() *cobra.Command {
	var opts stylizeOpts

	cmd := &cobra.Command{
		Use:   "stylize",
		Short: "Render content images in the style of style images",
		Long: `Render content images in the style of style images.

Give a single pair with --content and --style, or whole directories with
--content-dir and --style-dir. In directory mode every content image is
paired with the style image of the same name, or with the only image in
--style-dir when it holds just one.

Outputs are written to --outf as <content>-<style>.<format>.`,
		Example: `  stylewct stylize --content cat.jpg --style starry.jpg
  stylewct stylize --content-dir photos --style-dir styles --workers 4 --schedule
  stylewct stylize --content cat.jpg --style starry.jpg --saliency cat_sal.png --gamma 1 --delta 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStylize(cmd, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.content, "content", "", "content image")
	f.StringVar(&opts.style, "style", "", "style image")
	f.StringVar(&opts.saliency, "saliency", "", "saliency map for --content (enables saliency modulation)")
	f.StringVar(&opts.contentDir, "content-dir", "", "directory of content images")
	f.StringVar(&opts.styleDir, "style-dir", "", "directory of style images")
	f.StringVar(&opts.saliencyDir, "saliency-dir", "", "directory of saliency maps (enables saliency modulation)")
	f.StringVarP(&opts.outDir, "outf", "o", "output", "output directory")
	f.StringVar(&opts.format, "format", string(imageio.FormatPNG), "output format: png, jpg or bmp")
	f.IntVar(&opts.fineSize, "fine-size", 0, "scale the longer image side to this many pixels (0 keeps the size)")
	f.BoolVar(&opts.gray, "gray", false, "load images as grayscale")
	f.StringVar(&opts.method, "transform-method", string(wct.DefaultMethod), "transform: original or closed-form")
	f.StringSliceVar(&opts.targets, "targets", nil, "levels to stylize, deepest first (e.g. relu5_1,relu4_1 or 5,4)")
	f.Float64Var(&opts.gamma, "gamma", 0, "weight of the stylized features against the unstylized encoding")
	f.Float64Var(&opts.delta, "delta", 0, "weight of the fresh transform against the previous level's result")
	f.BoolVar(&opts.schedule, "schedule", false, "ramp delta across levels instead of holding it constant")
	f.BoolVar(&opts.reverseSchedule, "reverse-schedule", false, "run the delta schedule from the shallow end")
	f.IntVarP(&opts.workers, "workers", "w", 0, "pairs stylized in parallel (directory mode)")
	f.BoolVar(&opts.noCache, "no-cache", false, "disable the result cache")
	f.BoolVar(&opts.refresh, "refresh", false, "recompute results even when cached")

	cmd.MarkFlagsRequiredTogether("content", "style")
	cmd.MarkFlagsRequiredTogether("content-dir", "style-dir")
	cmd.MarkFlagsMutuallyExclusive("content", "content-dir")
	cmd.MarkFlagsMutuallyExclusive("saliency", "saliency-dir")
	cmd.MarkFlagsOneRequired("content", "content-dir")

	return cmd
}

func (c *CLI) runStylize(cmd *cobra.Command, opts *stylizeOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	popts, err := c.pipelineOptions(cmd, opts)
	if err != nil {
		return err
	}
	ext := strings.ToLower(strings.TrimPrefix(opts.format, "."))
	switch ext {
	case "png", "jpg", "jpeg", "bmp":
	default:
		return errors.New(errors.ErrCodeUnsupported, "unsupported output format %q (must be one of: png, jpg, bmp)", opts.format)
	}

	if _, err := model.Alignment(popts.Targets); err != nil {
		return err
	}

	files, err := filePairs(opts)
	if err != nil {
		return err
	}
	if popts.Saliency {
		for _, fp := range files {
			if fp.Saliency == "" {
				return errors.New(errors.ErrCodeInvalidConfig,
					"saliency modulation needs --saliency or --saliency-dir")
			}
		}
	}

	imgOpts := c.cfg.Image
	if cmd.Flags().Changed("fine-size") {
		imgOpts.FineSize = opts.fineSize
	}
	if cmd.Flags().Changed("gray") {
		imgOpts.Gray = opts.gray
	}

	prog := newProgress(logger)
	var pairs []pipeline.Pair
	var loaded []imageio.FilePair
	for _, fp := range files {
		p, err := loadPair(fp, imgOpts, popts.Targets)
		if err != nil {
			printError("%s: %s", fp.Name(), errors.UserMessage(err))
			continue
		}
		pairs = append(pairs, p)
		loaded = append(loaded, fp)
	}
	if len(pairs) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no image pairs could be loaded")
	}
	prog.done(fmt.Sprintf("Loaded %d pairs", len(pairs)))

	runner, err := c.newRunner(ctx, opts.noCache, "")
	if err != nil {
		return err
	}
	defer runner.Close()

	runs, err := c.newStore(ctx)
	if err != nil {
		logger.Warn("run history disabled", "err", err)
	}
	if runs != nil {
		defer runs.Close(context.WithoutCancel(ctx))
	}

	var results []pipeline.BatchResult
	if len(pairs) == 1 {
		spinner := newSpinnerWithContext(ctx, "Stylizing "+pairs[0].Name+"...")
		spinner.Start()
		res, err := runner.Execute(ctx, pairs[0], popts)
		spinner.Stop()
		results = []pipeline.BatchResult{{Pair: pairs[0].Name, Result: res, Err: err}}
	} else {
		workers := opts.workers
		if !cmd.Flags().Changed("workers") {
			workers = c.cfg.Transfer.Workers
		}
		if results, err = runner.Batch(ctx, pairs, popts, workers); err != nil {
			return err
		}
	}

	failed := 0
	for i, br := range results {
		if runs != nil {
			if err := runs.Insert(ctx, store.NewRecord("cli", br.Pair, popts, br.Result, br.Err)); err != nil {
				logger.Warn("cannot record run", "pair", br.Pair, "err", err)
			}
		}
		if br.Err != nil {
			failed++
			printError("%s: %s", br.Pair, errors.UserMessage(br.Err))
			continue
		}
		out := imageio.OutputPath(loaded[i].Content, imageio.PathOptions{
			Dir: opts.outDir,
			Ext: ext,
			Tag: fileStem(loaded[i].Style),
		})
		if err := imageio.Save(br.Result.Image, out); err != nil {
			failed++
			printError("%s: %s", br.Pair, errors.UserMessage(err))
			continue
		}
		printSuccess("%s", br.Pair)
		printFile(out)
		printRunStats(len(br.Result.Stats.Levels), br.Result.Stats.Total, br.Result.CacheHit)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if n, avg := pipeline.AverageTime(results); len(results) > 1 {
		printInfo("Stylized %d of %d pairs, %s on average", n, len(results), avg.Round(time.Millisecond))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d pairs failed", failed, len(results))
	}
	return nil
}

// pipelineOptions overlays the flags that were set on the configured
// transfer options.
func (c *CLI) pipelineOptions(cmd *cobra.Command, opts *stylizeOpts) (pipeline.Options, error) {
	popts, err := c.cfg.Options()
	if err != nil {
		return popts, err
	}
	changed := cmd.Flags().Changed

	if changed("transform-method") {
		if popts.Method, err = wct.ParseMethod(opts.method); err != nil {
			return popts, err
		}
	}
	if changed("targets") {
		if popts.Targets, err = pipeline.ParseLevels(opts.targets); err != nil {
			return popts, err
		}
	}
	if changed("gamma") {
		popts.Gamma = opts.gamma
	}
	if changed("delta") {
		popts.Delta = opts.delta
	}
	if changed("schedule") {
		popts.Schedule = opts.schedule
	}
	if changed("reverse-schedule") {
		popts.ReverseSchedule = opts.reverseSchedule
	}
	if opts.saliency != "" || opts.saliencyDir != "" {
		popts.Saliency = true
	}
	popts.Refresh = opts.refresh
	return popts, popts.ValidateAndSetDefaults()
}

// filePairs resolves the input flags to content/style file pairs.
func filePairs(opts *stylizeOpts) ([]imageio.FilePair, error) {
	if opts.content != "" {
		for _, p := range []string{opts.content, opts.style} {
			if err := errors.ValidatePath(p); err != nil {
				return nil, err
			}
		}
		return []imageio.FilePair{{Content: opts.content, Style: opts.style, Saliency: opts.saliency}}, nil
	}

	pairs, missing, err := imageio.PairDirs(opts.contentDir, opts.styleDir, opts.saliencyDir)
	if err != nil {
		return nil, err
	}
	for _, m := range missing {
		printWarning("skipping %s: no matching style or saliency image", m)
	}
	if len(pairs) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "no content image in %s has a matching style", opts.contentDir)
	}
	return pairs, nil
}

// loadPair reads the images of fp and crops them to the model's alignment.
func loadPair(fp imageio.FilePair, imgOpts imageio.Options, targets []pipeline.Level) (pipeline.Pair, error) {
	content, err := imageio.Load(fp.Content, imgOpts)
	if err != nil {
		return pipeline.Pair{}, err
	}
	if content, err = model.Align(content, targets); err != nil {
		return pipeline.Pair{}, errors.Wrap(errors.GetCode(err), err, "content %s", fp.Content)
	}
	style, err := imageio.Load(fp.Style, imgOpts)
	if err != nil {
		return pipeline.Pair{}, err
	}
	if style, err = model.Align(style, targets); err != nil {
		return pipeline.Pair{}, errors.Wrap(errors.GetCode(err), err, "style %s", fp.Style)
	}

	p := pipeline.Pair{Name: fp.Name(), Content: content, Style: style}
	if fp.Saliency != "" {
		if p.Saliency, err = imageio.LoadSaliency(fp.Saliency); err != nil {
			return pipeline.Pair{}, err
		}
	}
	return p, nil
}

func fileStem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
