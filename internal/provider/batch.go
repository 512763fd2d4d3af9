package provider

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// FetchBatched runs fetch for every id, at most BatchSize at a time, and
// returns results in input order. A failed fetch leaves a nil slot after
// reporting through onErr; it never aborts the batch. Only context
// cancellation stops the loop early.
func FetchBatched[T any](ctx context.Context, ids []string, fetch func(context.Context, string) (*T, error), onErr func(string, error)) ([]*T, error) {
	results := make([]*T, len(ids))

	for start := 0; start < len(ids); start += BatchSize {
		end := start + BatchSize
		if end > len(ids) {
			end = len(ids)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				item, err := fetch(gctx, ids[i])
				if err != nil {
					if onErr != nil {
						onErr(ids[i], err)
					}
					return nil
				}
				results[i] = item
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return results, err
		}
	}

	return results, nil
}
