// Package download provides the download orchestration logic for
// fetching sprites and storing them by category.
//
// # Strategies
//
// A Strategy drives a batch of records through fetch and store. Four
// interchangeable strategies differ only in their execution substrate:
//
//   - Sequential: one record at a time, the correctness baseline
//   - Pool ("threads"): a bounded set of goroutines sharing one client
//   - Process ("processes"): worker processes, each with its own client
//   - Cooperative ("async"): a single scheduler goroutine with a counting gate
//
// Every strategy holds a concurrency slot from before the fetch until the
// record is stored or failed, so at most Concurrency fetches and at most
// Concurrency writes are in flight. Run returns only when every record
// has exactly one Outcome; a failing record never stops its siblings.
//
// # Manager
//
// The Manager wires a Strategy to the configured inputs and output:
//
//  1. Read records from CSV or XLSX inputs
//  2. Open the output (a directory or a bucket URL) and optionally clean it
//  3. Run the strategy
//  4. Record metrics and, optionally, a journal entry per record
//
// # Basic Usage
//
//	manager, err := download.NewManager(settings, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer manager.Close()
//
//	if err := manager.Initialize(ctx, []string{"pokemon.csv"}); err != nil {
//	    log.Fatal(err) // wraps download.ErrSetup
//	}
//
//	summary, err := manager.StartDownloads(ctx)
//	fmt.Println(summary.Line())
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives ProgressEvent:
//
//	type ProgressEvent struct {
//	    Message string
//	    Level   ProgressLevel // Info, Verbose, Warning, Error, Success
//	    Record  *model.Record
//	    Err     error
//	}
//
// Every failed record produces one LevelError event whose message starts
// with "<category>/<name>: ". Deliveries are serialized, so the callback
// need not be safe for concurrent use.
//
// # Worker Processes
//
// The processes strategy re-executes the running binary with WorkerArg.
// The binary must call RunWorker for that argument; requests and
// responses travel as JSON lines over the worker's stdin and stdout.
package download
