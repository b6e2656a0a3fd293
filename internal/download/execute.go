package download

import (
	"context"
	"fmt"
	"time"

	"github.com/handiism/spritefetch/internal/model"
	"github.com/handiism/spritefetch/internal/store"
)

// run is the bookkeeping shared by every strategy for one Run call.
//
// Each index of outcomes is written by exactly one goroutine, the one that
// finished that record, and read only after the completion barrier.
type run struct {
	name     string
	limit    int
	observer Observer
	events   *reporter
	outcomes []Outcome
}

func newRun(name string, opts Options, n, limit int) *run {
	return &run{
		name:     name,
		limit:    limit,
		observer: opts.Observer,
		events:   &reporter{fn: opts.OnProgress},
		outcomes: make([]Outcome, n),
	}
}

func (r *run) acquire(rec model.Record) {
	if r.observer != nil {
		r.observer.SlotAcquired(rec)
	}
}

// finish records the terminal outcome of batch[i] and releases its slot.
func (r *run) finish(i int, out Outcome) {
	r.outcomes[i] = out
	if r.observer != nil {
		r.observer.Finished(out)
	}
	r.events.outcome(out)
	if r.observer != nil {
		r.observer.SlotReleased(out.Record)
	}
}

func (r *run) summary(elapsed time.Duration) *Summary {
	return newSummary(r.name, r.limit, r.outcomes, elapsed)
}

// execute drives one record through fetch and store.
func execute(ctx context.Context, f Fetcher, s store.Store, rec model.Record) Outcome {
	start := time.Now()

	data, err := fetchStage(ctx, f, rec)
	if err != nil {
		return failed(rec, StageFetch, err, start)
	}
	if err := storeStage(ctx, s, rec, data); err != nil {
		return failed(rec, StageStore, err, start)
	}
	return stored(rec, len(data), start)
}

// fetchStage fetches rec, turning a panic in the fetcher into an error.
func fetchStage(ctx context.Context, f Fetcher, rec model.Record) (data []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			data, err = nil, fmt.Errorf("fetcher panic: %v", p)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.Fetch(ctx, rec.URL)
}

// storeStage stores data for rec, turning a panic in the store into an error.
func storeStage(ctx context.Context, s store.Store, rec model.Record, data []byte) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("store panic: %v", p)
		}
	}()
	return s.Put(ctx, rec.Category, rec.Name, data)
}

func failed(rec model.Record, stage Stage, err error, start time.Time) Outcome {
	return Outcome{Record: rec, Stage: stage, Err: err, Elapsed: time.Since(start)}
}

func stored(rec model.Record, n int, start time.Time) Outcome {
	return Outcome{Record: rec, Stage: StageDone, Bytes: n, Elapsed: time.Since(start)}
}
