package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/handiism/spritefetch/internal/model"
	"github.com/handiism/spritefetch/internal/store"
)

// request asks a worker process to fetch and store one record.
type request struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	URL      string `json:"url"`
}

// response reports the terminal state of a request. Only the outcome
// crosses the process boundary, never the fetched bytes.
type response struct {
	ID     int    `json:"id"`
	OK     bool   `json:"ok"`
	Stage  Stage  `json:"stage,omitempty"`
	Reason string `json:"reason,omitempty"`
	Bytes  int    `json:"bytes,omitempty"`
}

func newRequest(id int, rec model.Record) request {
	return request{ID: id, Name: rec.Name, Category: rec.Category, URL: rec.URL}
}

func (r request) record() model.Record {
	return model.Record{Name: r.Name, Category: r.Category, URL: r.URL}
}

func newResponse(id int, out Outcome) response {
	resp := response{ID: id, OK: out.OK(), Bytes: out.Bytes}
	if !out.OK() {
		resp.Stage = out.Stage
		resp.Reason = out.Reason()
	}
	return resp
}

// WorkerError is the failure reported back by a worker process.
type WorkerError struct {
	Reason string
}

func (e *WorkerError) Error() string {
	return e.Reason
}

// outcome converts a response into the Outcome of rec.
func (r response) outcome(rec model.Record) Outcome {
	if r.OK {
		return Outcome{Record: rec, Stage: StageDone, Bytes: r.Bytes}
	}
	stage := r.Stage
	if stage != StageStore {
		stage = StageFetch
	}
	return Outcome{Record: rec, Stage: stage, Err: &WorkerError{Reason: r.Reason}}
}

// ServeWorker is the loop of a worker process: it reads one JSON request
// per line from r, fetches and stores the record with the worker's own
// fetcher and store, and writes one JSON response per line to w.
//
// ServeWorker returns nil when r reaches EOF, or once ctx is done and the
// in-flight request has been answered.
func ServeWorker(ctx context.Context, r io.Reader, w io.Writer, fetcher Fetcher, st store.Store) error {
	dec := json.NewDecoder(r)
	enc := json.NewEncoder(w)

	for ctx.Err() == nil {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}

		out := execute(ctx, fetcher, st, req.record())
		if err := enc.Encode(newResponse(req.ID, out)); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	return nil
}
