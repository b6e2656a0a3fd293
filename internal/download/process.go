package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/handiism/spritefetch/internal/model"
)

// Process processes records in separate worker processes.
//
// Every driver goroutine owns one worker process, started from
// Options.Command, and keeps one request outstanding on it. The worker
// builds its own fetcher and store, so no client or buffer is shared
// across the process boundary; only a success or failure signal comes
// back. A worker that dies fails its in-flight record and is replaced
// before the next record. A record that finds no worker able to start is
// failed rather than left waiting.
type Process struct {
	opts Options
}

// NewProcess creates a Process strategy.
func NewProcess(opts Options) *Process {
	return &Process{opts: opts}
}

// Name implements Strategy.
func (p *Process) Name() string {
	return string(KindProcesses)
}

// Run implements Strategy.
func (p *Process) Run(ctx context.Context, batch []model.Record) *Summary {
	limit := EffectiveConcurrency(KindProcesses, p.opts.Concurrency, len(batch))
	r := newRun(p.Name(), p.opts, len(batch), limit)

	elapsed := Timed(func() {
		jobs := make(chan int)

		var g errgroup.Group
		for slot := range limit {
			g.Go(func() error {
				p.drive(ctx, r, slot, batch, jobs)
				return nil
			})
		}

		for i := range batch {
			jobs <- i
		}
		close(jobs)

		_ = g.Wait()
	})

	return r.summary(elapsed)
}

// drive feeds records from jobs to one worker process until jobs is
// closed. It never returns early, so the feeding loop cannot block.
func (p *Process) drive(ctx context.Context, r *run, slot int, batch []model.Record, jobs <-chan int) {
	var w *workerProc
	defer func() {
		if w != nil {
			if err := w.stop(); err != nil && ctx.Err() == nil {
				r.events.emit(ProgressEvent{Message: fmt.Sprintf("worker %d: %v", slot, err), Level: LevelWarning})
			}
		}
	}()

	for i := range jobs {
		rec := batch[i]
		r.acquire(rec)
		start := time.Now()

		if err := ctx.Err(); err != nil {
			r.finish(i, failed(rec, StageFetch, err, start))
			continue
		}

		if w == nil {
			var err error
			w, err = startWorker(ctx, p.opts.Command)
			if err != nil {
				r.finish(i, failed(rec, StageFetch, fmt.Errorf("no worker available: %w", err), start))
				continue
			}
		}

		resp, err := w.do(newRequest(i, rec))
		if err != nil {
			w.kill()
			w = nil
			if ctx.Err() != nil {
				err = ctx.Err()
			} else {
				r.events.emit(ProgressEvent{Message: fmt.Sprintf("worker %d exited unexpectedly, restarting", slot), Level: LevelWarning})
				err = fmt.Errorf("worker exited: %w", err)
			}
			r.finish(i, failed(rec, StageFetch, err, start))
			continue
		}

		out := resp.outcome(rec)
		out.Elapsed = time.Since(start)
		r.finish(i, out)
	}
}

// interruptOnCancel makes a context-bound command receive os.Interrupt
// instead of SIGKILL when its context is done, so the worker finishes or
// removes its temp file. Commands still running after workerStopDelay are
// killed.
func interruptOnCancel(cmd *exec.Cmd) {
	if cmd.Cancel == nil {
		// Not started with exec.CommandContext.
		return
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = workerStopDelay
	}
}

// workerProc is a running worker process speaking JSON lines on its
// stdin and stdout.
type workerProc struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	enc   *json.Encoder
	dec   *json.Decoder

	waitOnce sync.Once
	waitErr  error
}

// workerStopDelay is how long a canceled worker may take to finish its
// in-flight record before it is killed.
const workerStopDelay = 5 * time.Second

func startWorker(ctx context.Context, command CommandFunc) (*workerProc, error) {
	cmd := command(ctx)
	interruptOnCancel(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &workerProc{
		cmd:   cmd,
		stdin: stdin,
		enc:   json.NewEncoder(stdin),
		dec:   json.NewDecoder(stdout),
	}, nil
}

// do sends req and waits for its response.
func (w *workerProc) do(req request) (response, error) {
	if err := w.enc.Encode(req); err != nil {
		return response{}, err
	}

	var resp response
	if err := w.dec.Decode(&resp); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return response{}, err
	}
	if resp.ID != req.ID {
		return response{}, fmt.Errorf("response for request %d, want %d", resp.ID, req.ID)
	}
	return resp, nil
}

// stop closes stdin and waits for the worker to exit on its own.
func (w *workerProc) stop() error {
	_ = w.stdin.Close()
	return w.wait()
}

// kill terminates the worker and reaps it.
func (w *workerProc) kill() {
	_ = w.stdin.Close()
	if w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	_ = w.wait()
}

func (w *workerProc) wait() error {
	w.waitOnce.Do(func() {
		w.waitErr = w.cmd.Wait()
	})
	return w.waitErr
}
