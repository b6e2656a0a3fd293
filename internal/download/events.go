package download

import (
	"fmt"
	"sync"

	"github.com/handiism/spritefetch/internal/model"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

func (l ProgressLevel) String() string {
	switch l {
	case LevelVerbose:
		return "verbose"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelSuccess:
		return "success"
	default:
		return "info"
	}
}

// ProgressEvent represents a download progress update.
//
// Record and Err are set for events about a single record.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
	Record  *model.Record
	Err     error
}

// Observer is notified as records move through a run. Implementations
// must be safe for concurrent use.
type Observer interface {
	// SlotAcquired is called once a concurrency slot is held for rec,
	// before its fetch starts.
	SlotAcquired(rec model.Record)
	// SlotReleased is called after rec is terminal and its slot is
	// about to be given back.
	SlotReleased(rec model.Record)
	// Finished is called exactly once per record with its outcome.
	Finished(out Outcome)
}

// Observers fans notifications out to several observers. Nil entries are
// skipped.
type Observers []Observer

func (obs Observers) SlotAcquired(rec model.Record) {
	for _, o := range obs {
		if o != nil {
			o.SlotAcquired(rec)
		}
	}
}

func (obs Observers) SlotReleased(rec model.Record) {
	for _, o := range obs {
		if o != nil {
			o.SlotReleased(rec)
		}
	}
}

func (obs Observers) Finished(out Outcome) {
	for _, o := range obs {
		if o != nil {
			o.Finished(out)
		}
	}
}

// reporter serializes event delivery.
type reporter struct {
	mu sync.Mutex
	fn func(ProgressEvent)
}

func (r *reporter) emit(event ProgressEvent) {
	if r == nil || r.fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fn(event)
}

func (r *reporter) outcome(out Outcome) {
	rec := out.Record
	if out.OK() {
		r.emit(ProgressEvent{
			Message: fmt.Sprintf("Stored %s (%d bytes)", rec.Key(), out.Bytes),
			Level:   LevelVerbose,
			Record:  &rec,
		})
		return
	}
	r.emit(ProgressEvent{
		Message: fmt.Sprintf("%s: %s", rec.Key(), out.Reason()),
		Level:   LevelError,
		Record:  &rec,
		Err:     out.Err,
	})
}
