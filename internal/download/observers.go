package download

import (
	"sync/atomic"

	"github.com/handiism/spritefetch/internal/metrics"
	"github.com/handiism/spritefetch/internal/model"
)

// counters tracks run progress for GetProgress.
type counters struct {
	total  atomic.Int32
	done   atomic.Int32
	stored atomic.Int32
	failed atomic.Int32
}

func (c *counters) reset(total int) {
	c.total.Store(int32(total))
	c.done.Store(0)
	c.stored.Store(0)
	c.failed.Store(0)
}

func (c *counters) SlotAcquired(model.Record) {}
func (c *counters) SlotReleased(model.Record) {}

func (c *counters) Finished(out Outcome) {
	if out.OK() {
		c.stored.Add(1)
	} else {
		c.failed.Add(1)
	}
	c.done.Add(1)
}

// metricsObserver feeds a metrics.Recorder.
type metricsObserver struct {
	recorder *metrics.Recorder
	strategy string
}

func (o *metricsObserver) SlotAcquired(model.Record) { o.recorder.Acquire() }
func (o *metricsObserver) SlotReleased(model.Record) { o.recorder.Release() }

func (o *metricsObserver) Finished(out Outcome) {
	stage := ""
	if !out.OK() {
		stage = string(out.Stage)
	}
	o.recorder.ObserveRecord(o.strategy, out.Status(), stage, out.Bytes, out.Elapsed)
}
