package download

import (
	"context"

	"github.com/handiism/spritefetch/internal/model"
)

// Sequential processes records one at a time, in batch order. It is the
// correctness baseline for the concurrent strategies.
type Sequential struct {
	opts Options
}

// NewSequential creates a Sequential strategy. opts.Concurrency is ignored.
func NewSequential(opts Options) *Sequential {
	return &Sequential{opts: opts}
}

// Name implements Strategy.
func (s *Sequential) Name() string {
	return string(KindSequential)
}

// Run implements Strategy.
func (s *Sequential) Run(ctx context.Context, batch []model.Record) *Summary {
	r := newRun(s.Name(), s.opts, len(batch), EffectiveConcurrency(KindSequential, 1, len(batch)))

	elapsed := Timed(func() {
		for i, rec := range batch {
			r.acquire(rec)
			r.finish(i, execute(ctx, s.opts.Fetcher, s.opts.Store, rec))
		}
	})

	return r.summary(elapsed)
}
