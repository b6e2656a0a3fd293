package download

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"time"

	"github.com/handiism/spritefetch/internal/model"
	"github.com/handiism/spritefetch/internal/store"
)

// DefaultConcurrency is the bound used when Options.Concurrency is not set.
const DefaultConcurrency = 8

// ErrSetup marks failures that prevent a run from starting at all: an
// unreadable input, an unusable output root, an invalid configuration.
var ErrSetup = errors.New("setup failed")

// Fetcher retrieves the bytes of a remote resource in a single attempt.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// Kind selects a Strategy.
type Kind string

const (
	KindSequential Kind = "sequential"
	KindThreads    Kind = "threads"
	KindProcesses  Kind = "processes"
	KindAsync      Kind = "async"
)

// Kinds lists every strategy kind.
var Kinds = []Kind{KindSequential, KindThreads, KindProcesses, KindAsync}

// ParseKind converts a strategy name to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// CommandFunc builds the command that starts one worker process. The
// command must run ServeWorker on its stdin and stdout.
//
// A command built with exec.CommandContext is sent os.Interrupt, not
// killed, when the run is canceled, so the worker should stop serving on
// that signal.
type CommandFunc func(ctx context.Context) *exec.Cmd

// Options configures a Strategy.
type Options struct {
	// Concurrency is the maximum number of records in flight. Zero or less
	// means DefaultConcurrency. The effective bound never exceeds the
	// batch size.
	Concurrency int

	// Fetcher and Store are used by the in-process strategies.
	Fetcher Fetcher
	Store   store.Store

	// Command starts a worker process. Required by KindProcesses.
	Command CommandFunc

	// Observer is notified of slot and outcome transitions. It must be
	// safe for concurrent use.
	Observer Observer

	// OnProgress receives progress events. Calls are serialized.
	OnProgress func(ProgressEvent)
}

// Strategy drives a batch through fetch and store.
//
// Run returns only after every record of the batch has exactly one
// Outcome. Per-record failures are reported in the Summary and through
// events, never as a returned error.
type Strategy interface {
	Name() string
	Run(ctx context.Context, batch []model.Record) *Summary
}

// New returns the Strategy for kind.
func New(kind Kind, opts Options) (Strategy, error) {
	switch kind {
	case KindSequential, KindThreads, KindAsync:
		if opts.Fetcher == nil || opts.Store == nil {
			return nil, fmt.Errorf("%s strategy needs a fetcher and a store", kind)
		}
	case KindProcesses:
		if opts.Command == nil {
			return nil, fmt.Errorf("%s strategy needs a worker command", kind)
		}
	default:
		return nil, fmt.Errorf("unknown strategy %q", kind)
	}

	switch kind {
	case KindSequential:
		return NewSequential(opts), nil
	case KindThreads:
		return NewPool(opts), nil
	case KindProcesses:
		return NewProcess(opts), nil
	default:
		return NewCooperative(opts), nil
	}
}

// EffectiveConcurrency returns the bound a strategy of kind uses for a
// batch of n records configured with concurrency c.
func EffectiveConcurrency(kind Kind, c, n int) int {
	if kind == KindSequential {
		return 1
	}
	if c <= 0 {
		c = DefaultConcurrency
	}
	if c > n {
		c = n
	}
	if c < 1 {
		c = 1
	}
	return c
}

// Stage is the step at which a record ended.
type Stage string

const (
	StageFetch Stage = "fetch"
	StageStore Stage = "store"
	StageDone  Stage = "done"
)

// Outcome is the terminal state of one record.
type Outcome struct {
	Record  model.Record
	Stage   Stage
	Err     error
	Bytes   int
	Elapsed time.Duration
}

// OK reports whether the record was stored.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Status returns "stored" or "failed".
func (o Outcome) Status() string {
	if o.OK() {
		return "stored"
	}
	return "failed"
}

// Reason returns the failure reason, or "" for a stored record.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// CategoryStats counts outcomes within one category.
type CategoryStats struct {
	Stored int
	Failed int
	Bytes  int
}

// Summary describes a finished run.
type Summary struct {
	Strategy    string
	Concurrency int
	Total       int
	Stored      int
	Failed      int
	Bytes       int
	Elapsed     time.Duration
	Categories  map[string]CategoryStats

	// Outcomes holds one entry per record, in batch order.
	Outcomes []Outcome
}

func newSummary(strategy string, concurrency int, outcomes []Outcome, elapsed time.Duration) *Summary {
	s := &Summary{
		Strategy:    strategy,
		Concurrency: concurrency,
		Total:       len(outcomes),
		Elapsed:     elapsed,
		Categories:  make(map[string]CategoryStats),
		Outcomes:    outcomes,
	}
	for _, o := range outcomes {
		stats := s.Categories[o.Record.Category]
		if o.OK() {
			s.Stored++
			s.Bytes += o.Bytes
			stats.Stored++
			stats.Bytes += o.Bytes
		} else {
			s.Failed++
			stats.Failed++
		}
		s.Categories[o.Record.Category] = stats
	}
	return s
}

// CategoryNames returns the categories of the summary in sorted order.
func (s *Summary) CategoryNames() []string {
	names := make([]string, 0, len(s.Categories))
	for name := range s.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Failures returns the failed outcomes in batch order.
func (s *Summary) Failures() []Outcome {
	var failed []Outcome
	for _, o := range s.Outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Line returns the one-line run summary printed on completion.
func (s *Summary) Line() string {
	return fmt.Sprintf("Finished %d downloads in %.2fs (stored %d, failed %d)",
		s.Total, s.Elapsed.Seconds(), s.Stored, s.Failed)
}

// Timed runs fn and returns how long it took.
func Timed(fn func()) time.Duration {
	start := time.Now()
	fn()
	return time.Since(start)
}
