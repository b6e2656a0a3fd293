package download

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/handiism/spritefetch/internal/model"
)

// Cooperative multiplexes records on a single scheduler goroutine.
//
// The scheduler owns every piece of task state. A counting gate admits at
// most Concurrency tasks; an admitted task suspends twice, once while its
// fetch runs and once while its write runs, each dispatched to its own
// goroutine that reports back on a completion channel. The scheduler
// never blocks on anything but that channel.
type Cooperative struct {
	opts Options
}

// NewCooperative creates a Cooperative strategy.
func NewCooperative(opts Options) *Cooperative {
	return &Cooperative{opts: opts}
}

// Name implements Strategy.
func (c *Cooperative) Name() string {
	return string(KindAsync)
}

// completion is what a dispatched step reports back to the scheduler.
type completion struct {
	index int
	stage Stage
	data  []byte
	err   error
}

// Run implements Strategy.
func (c *Cooperative) Run(ctx context.Context, batch []model.Record) *Summary {
	limit := EffectiveConcurrency(KindAsync, c.opts.Concurrency, len(batch))
	r := newRun(c.Name(), c.opts, len(batch), limit)

	elapsed := Timed(func() {
		c.schedule(ctx, r, batch, limit)
	})

	return r.summary(elapsed)
}

func (c *Cooperative) schedule(ctx context.Context, r *run, batch []model.Record, limit int) {
	gate := semaphore.NewWeighted(int64(limit))
	// At most limit steps are outstanding, so sends never block.
	done := make(chan completion, limit)
	started := make([]time.Time, len(batch))

	next, pending := 0, len(batch)
	for pending > 0 {
		for next < len(batch) && gate.TryAcquire(1) {
			i := next
			next++
			r.acquire(batch[i])
			started[i] = time.Now()
			c.dispatchFetch(ctx, done, i, batch[i])
		}

		ev := <-done
		rec := batch[ev.index]

		switch {
		case ev.err != nil:
			r.finish(ev.index, failed(rec, ev.stage, ev.err, started[ev.index]))
		case ev.stage == StageFetch:
			c.dispatchStore(ctx, done, ev.index, rec, ev.data)
			continue
		default:
			r.finish(ev.index, stored(rec, len(ev.data), started[ev.index]))
		}

		gate.Release(1)
		pending--
	}
}

func (c *Cooperative) dispatchFetch(ctx context.Context, done chan<- completion, i int, rec model.Record) {
	go func() {
		data, err := fetchStage(ctx, c.opts.Fetcher, rec)
		done <- completion{index: i, stage: StageFetch, data: data, err: err}
	}()
}

func (c *Cooperative) dispatchStore(ctx context.Context, done chan<- completion, i int, rec model.Record, data []byte) {
	go func() {
		err := storeStage(ctx, c.opts.Store, rec, data)
		done <- completion{index: i, stage: StageStore, data: data, err: err}
	}()
}
