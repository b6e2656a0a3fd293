package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/handiism/spritefetch/internal/config"
	"github.com/handiism/spritefetch/internal/http"
	"github.com/handiism/spritefetch/internal/journal"
	"github.com/handiism/spritefetch/internal/metrics"
	"github.com/handiism/spritefetch/internal/model"
	"github.com/handiism/spritefetch/internal/source"
	"github.com/handiism/spritefetch/internal/store"
)

// WorkerArg is the hidden subcommand that runs a worker process.
const WorkerArg = "worker"

// Manager coordinates a download run: it reads the batch, prepares the
// output, and drives the configured Strategy.
type Manager struct {
	settings *config.Settings
	kind     Kind
	fetcher  Fetcher
	command  CommandFunc
	observer Observer
	recorder *metrics.Recorder
	journal  *journal.Journal

	store    store.Store
	closer   io.Closer
	strategy Strategy
	batch    []model.Record

	progress counters

	onProgress func(ProgressEvent)
	mu         sync.Mutex
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithFetcher replaces the HTTP fetcher of the in-process strategies.
func WithFetcher(f Fetcher) ManagerOption {
	return func(m *Manager) { m.fetcher = f }
}

// WithWorkerCommand replaces the command that starts worker processes.
func WithWorkerCommand(fn CommandFunc) ManagerOption {
	return func(m *Manager) { m.command = fn }
}

// WithObserver adds an observer to every run.
func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) { m.observer = o }
}

// NewManager creates a new download Manager.
//
// Invalid settings and an unopenable journal are reported as ErrSetup.
func NewManager(settings *config.Settings, onProgress func(ProgressEvent), opts ...ManagerOption) (*Manager, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	kind, err := ParseKind(settings.Strategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}

	m := &Manager{
		settings:   settings,
		kind:       kind,
		recorder:   metrics.New(),
		onProgress: onProgress,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.fetcher == nil {
		m.fetcher = newFetcher(settings)
	}
	if m.command == nil {
		m.command = WorkerCommand(settings)
	}

	if settings.Journal != "" {
		j, err := journal.New(settings.Journal)
		if err != nil {
			return nil, fmt.Errorf("%w: open journal %s: %w", ErrSetup, settings.Journal, err)
		}
		m.journal = j
	}

	return m, nil
}

// newFetcher builds the fetcher described by settings.
func newFetcher(settings *config.Settings) Fetcher {
	client := http.NewClient(
		http.WithTimeout(settings.Timeout),
		http.WithUserAgent(settings.UserAgent),
	)
	return wrapFetcher(client, settings.Verify, settings.MaxImageSize)
}

// openStore opens the store for settings.Output. The returned closer is
// nil for stores that hold no resources.
func openStore(ctx context.Context, settings *config.Settings) (store.Store, io.Closer, error) {
	if store.IsBucketURL(settings.Output) {
		bs, err := store.OpenBlobStore(ctx, settings.Output, settings.Extension)
		if err != nil {
			return nil, nil, err
		}
		return bs, bs, nil
	}
	return store.NewFileStore(settings.Output, settings.Extension), nil, nil
}

// WorkerCommand returns a CommandFunc that re-executes the running binary
// with WorkerArg, passing settings through config.WorkerEnv.
func WorkerCommand(settings *config.Settings) CommandFunc {
	return func(ctx context.Context) *exec.Cmd {
		exe, err := os.Executable()
		if err != nil {
			exe = os.Args[0]
		}
		cmd := exec.CommandContext(ctx, exe, WorkerArg)
		cmd.Env = os.Environ()
		if env, err := settings.EncodeWorkerEnv(); err == nil {
			cmd.Env = append(cmd.Env, env)
		}
		cmd.Stderr = os.Stderr
		return cmd
	}
}

// RunWorker is the body of a worker process: it builds its own fetcher
// and store from settings and serves requests from r until EOF or until
// ctx is done. Callers cancel ctx on os.Interrupt.
func RunWorker(ctx context.Context, settings *config.Settings, r io.Reader, w io.Writer) error {
	st, closer, err := openStore(ctx, settings)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	return ServeWorker(ctx, r, w, newFetcher(settings), st)
}

// Initialize reads the batch from inputs and prepares the output root.
//
// Every error returned wraps ErrSetup; no record has been processed when
// Initialize fails.
func (m *Manager) Initialize(ctx context.Context, inputs []string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: no input files", ErrSetup)
	}
	if m.settings.Output == "" {
		return fmt.Errorf("%w: no output location", ErrSetup)
	}
	if m.kind == KindProcesses && strings.HasPrefix(m.settings.Output, "mem://") {
		return fmt.Errorf("%w: %s output cannot be shared with worker processes", ErrSetup, m.settings.Output)
	}

	batch, err := source.ReadAll(inputs, m.settings.Columns)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}

	if err := m.prepareStore(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}

	if dups := model.Duplicates(batch); len(dups) > 0 {
		m.emit(ProgressEvent{
			Message: fmt.Sprintf("Duplicate records, the last write wins: %s", strings.Join(dups, ", ")),
			Level:   LevelWarning,
		})
	}

	strategy, err := New(m.kind, Options{
		Concurrency: m.settings.Concurrency,
		Fetcher:     m.fetcher,
		Store:       m.store,
		Command:     m.command,
		Observer: Observers{
			&m.progress,
			&metricsObserver{recorder: m.recorder, strategy: string(m.kind)},
			m.observer,
		},
		OnProgress: m.emit,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}

	m.strategy = strategy
	m.batch = batch
	m.progress.reset(len(batch))

	m.emit(ProgressEvent{
		Message: fmt.Sprintf("Found %d records in %d categories", len(batch), len(model.Categories(batch))),
		Level:   LevelInfo,
	})
	return nil
}

func (m *Manager) prepareStore(ctx context.Context) error {
	if m.store == nil {
		st, closer, err := openStore(ctx, m.settings)
		if err != nil {
			return err
		}
		m.store, m.closer = st, closer
	}

	if m.settings.Clean {
		if c, ok := m.store.(store.Cleaner); ok {
			if err := c.Clean(ctx); err != nil {
				return fmt.Errorf("clean %s: %w", m.settings.Output, err)
			}
			m.emit(ProgressEvent{Message: fmt.Sprintf("Cleaned %s", m.settings.Output), Level: LevelVerbose})
		}
	}

	switch s := m.store.(type) {
	case *store.FileStore:
		if err := s.Prepare(); err != nil {
			return fmt.Errorf("output %s is not writable: %w", s.Root(), err)
		}
	case *store.BlobStore:
		if err := s.Prepare(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StartDownloads runs the strategy over the initialized batch and blocks
// until every record is terminal.
//
// Per-record failures are part of the Summary; the only error returned is
// ErrSetup when Initialize has not succeeded.
func (m *Manager) StartDownloads(ctx context.Context) (*Summary, error) {
	if m.strategy == nil {
		return nil, fmt.Errorf("%w: manager not initialized", ErrSetup)
	}

	limit := EffectiveConcurrency(m.kind, m.settings.Concurrency, len(m.batch))
	m.progress.reset(len(m.batch))
	m.recorder.SetConcurrency(limit)

	runID := m.beginJournal(ctx, limit)

	m.emit(ProgressEvent{
		Message: fmt.Sprintf("Starting %d downloads (strategy %s, concurrency %d)", len(m.batch), m.strategy.Name(), limit),
		Level:   LevelInfo,
	})

	summary := m.strategy.Run(ctx, m.batch)
	m.recorder.ObserveRun(summary.Strategy, summary.Elapsed)

	m.finishJournal(ctx, runID, summary)

	level := LevelSuccess
	if summary.Failed > 0 {
		level = LevelWarning
	}
	m.emit(ProgressEvent{Message: summary.Line(), Level: level})

	return summary, nil
}

func (m *Manager) beginJournal(ctx context.Context, limit int) string {
	if m.journal == nil {
		return ""
	}
	id, err := m.journal.BeginRun(ctx, string(m.kind), limit, len(m.batch))
	if err != nil {
		m.emit(ProgressEvent{Message: fmt.Sprintf("Journal: %v", err), Level: LevelWarning})
		return ""
	}
	return id
}

func (m *Manager) finishJournal(ctx context.Context, runID string, summary *Summary) {
	if m.journal == nil || runID == "" {
		return
	}
	// An interrupted run is still recorded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	entries := make([]journal.Entry, len(summary.Outcomes))
	for i, o := range summary.Outcomes {
		entries[i] = journal.Entry{
			Category: o.Record.Category,
			Name:     o.Record.Name,
			URL:      o.Record.URL,
			Status:   o.Status(),
			Reason:   o.Reason(),
			Bytes:    o.Bytes,
			Elapsed:  o.Elapsed,
		}
		if !o.OK() {
			entries[i].Stage = string(o.Stage)
		}
	}

	err := errors.Join(
		m.journal.Record(ctx, runID, entries...),
		m.journal.FinishRun(ctx, runID, summary.Stored, summary.Failed, summary.Elapsed),
	)
	if err != nil {
		m.emit(ProgressEvent{Message: fmt.Sprintf("Journal: %v", err), Level: LevelWarning})
		return
	}
	m.emit(ProgressEvent{Message: fmt.Sprintf("Journal run %s recorded", runID), Level: LevelVerbose})
}

// GetProgress returns current download progress.
func (m *Manager) GetProgress() (done, stored, failed, total int32) {
	return m.progress.done.Load(), m.progress.stored.Load(),
		m.progress.failed.Load(), m.progress.total.Load()
}

// Records returns the initialized batch.
func (m *Manager) Records() []model.Record {
	return m.batch
}

// Categories returns the distinct categories of the initialized batch.
func (m *Manager) Categories() []string {
	return model.Categories(m.batch)
}

// Metrics returns the Prometheus recorder of this manager.
func (m *Manager) Metrics() *metrics.Recorder {
	return m.recorder
}

// Close releases the journal and the store.
func (m *Manager) Close() error {
	var errs []error
	if m.journal != nil {
		errs = append(errs, m.journal.Close())
	}
	if m.closer != nil {
		errs = append(errs, m.closer.Close())
	}
	return errors.Join(errs...)
}

func (m *Manager) emit(event ProgressEvent) {
	if m.onProgress == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onProgress(event)
}
