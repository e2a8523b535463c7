package backtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/tradeforge/backtester/internal/candle"
)

// Sweep runs one backtest per parameter set in grid, fanning out across
// workers goroutines. Each run gets its own state; only the registry and the
// dataset are shared, both read-only. Results are returned in grid order.
// The first failed run cancels the remaining work.
func (e *Engine) Sweep(ctx context.Context, ds *candle.Dataset, base RunConfig, grid []map[string]any, workers int) ([]*Result, error) {
	if len(grid) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = 4
	}
	if workers > len(grid) {
		workers = len(grid)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	results := make([]*Result, len(grid))
	errs := make([]error, len(grid))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				cfg := base
				cfg.Params = grid[i]
				res, err := e.Run(ds, cfg)
				if err != nil {
					errs[i] = err
					cancel()
					continue
				}
				results[i] = res
			}
		}()
	}

	for i := range grid {
		select {
		case <-ctx.Done():
		case jobs <- i:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("sweep run %d: %w", i, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// BestBy returns the result maximizing the given score, or nil for an empty
// slice. Used by parameter sweeps to pick a winner.
func BestBy(results []*Result, score func(Metrics) float64) *Result {
	var best *Result
	for _, r := range results {
		if r == nil {
			continue
		}
		if best == nil || score(r.Metrics) > score(best.Metrics) {
			best = r
		}
	}
	return best
}
