package download

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/handiism/spritefetch/internal/model"
)

// Pool processes records on a bounded set of goroutines sharing one
// Fetcher and one Store.
//
// The errgroup limit is the concurrency slot: g.Go blocks the feeding loop
// while all slots are busy, and a slot is only returned when its goroutine
// has stored or failed its record. Category directories are created by the
// store with an idempotent MkdirAll, so workers need no lock between them.
type Pool struct {
	opts Options
}

// NewPool creates a Pool strategy.
func NewPool(opts Options) *Pool {
	return &Pool{opts: opts}
}

// Name implements Strategy.
func (p *Pool) Name() string {
	return string(KindThreads)
}

// Run implements Strategy.
func (p *Pool) Run(ctx context.Context, batch []model.Record) *Summary {
	limit := EffectiveConcurrency(KindThreads, p.opts.Concurrency, len(batch))
	r := newRun(p.Name(), p.opts, len(batch), limit)

	elapsed := Timed(func() {
		var g errgroup.Group
		g.SetLimit(limit)

		for i, rec := range batch {
			g.Go(func() error {
				r.acquire(rec)
				r.finish(i, execute(ctx, p.opts.Fetcher, p.opts.Store, rec))
				return nil // failures are outcomes, never group errors
			})
		}

		_ = g.Wait()
	})

	return r.summary(elapsed)
}
