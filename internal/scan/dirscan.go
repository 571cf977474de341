package scan

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ScanDir scans all supported files under root using at most workers
// concurrent analyses. Matches are returned in file order. A file that
// cannot be analyzed is logged and skipped.
func (f *Finder) ScanDir(ctx context.Context, root string, workers int) ([]Match, error) {
	sources, err := WalkDir(root)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	if workers <= 0 {
		workers = 1
	}

	results := make([][]Match, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rc, err := src.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", src.Name, err)
			}
			defer rc.Close()

			ms, err := f.ScanReader(ctx, src.Name, rc)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				f.logger.Warn("skipping source", zap.String("source", src.Name), zap.Error(err))
				return nil
			}
			results[i] = ms
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var matches []Match
	for _, ms := range results {
		matches = append(matches, ms...)
	}
	return matches, nil
}
