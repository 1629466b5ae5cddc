package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome for one pair of a batch. Exactly one of Result
// and Err is set.
type BatchResult struct {
	Pair   string
	Result *Result
	Err    error
}

// Batch stylizes pairs with at most workers running at once. Results are
// returned in input order. A failing pair only records its error; the other
// pairs keep running. The returned error is non-nil only for invalid options.
func (r *Runner) Batch(ctx context.Context, pairs []Pair, opts Options, workers int) ([]BatchResult, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]BatchResult, len(pairs))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, pair := range pairs {
		g.Go(func() error {
			opts.Logger.Info("transferring", "pair", pair.Name)
			res, err := r.Execute(ctx, pair, opts)
			results[i] = BatchResult{Pair: pair.Name, Result: res, Err: err}
			if err != nil {
				opts.Logger.Error("transfer failed", "pair", pair.Name, "err", err)
				return nil
			}
			opts.Logger.Info("transferred", "pair", pair.Name,
				"elapsed", res.Stats.Total.Round(time.Millisecond), "cached", res.CacheHit)
			return nil
		})
	}
	_ = g.Wait()

	if n, avg := AverageTime(results); n > 0 {
		opts.Logger.Info("batch complete", "processed", n, "failed", len(results)-n, "average", avg.Round(time.Millisecond))
	}
	return results, nil
}

// AverageTime returns the number of successful pairs and their mean wall time.
func AverageTime(results []BatchResult) (int, time.Duration) {
	var n int
	var total time.Duration
	for _, br := range results {
		if br.Err == nil && br.Result != nil {
			n++
			total += br.Result.Stats.Total
		}
	}
	if n == 0 {
		return 0, 0
	}
	return n, total / time.Duration(n)
}
