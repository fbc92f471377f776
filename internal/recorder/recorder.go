package recorder

import (
	"context"
	"log/slog"

	"github.com/roach88/podctl/internal/engine"
)

// Recorder captures one run's engine events into a Store.
//
// Thread-safety model:
//   - OnTransition(), OnStatusChange(), Close(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// Recorder implements engine.Observer.
type Recorder struct {
	store  *Store
	runID  string
	queue  *eventQueue
	logger *slog.Logger

	// Touched by Run only.
	transitions int
	changes     int
	written     int
	failures    int
}

// New creates a recorder for runID. The run row must already exist
// (Store.BeginRun). A nil logger uses slog.Default().
func New(s *Store, runID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  s,
		runID:  runID,
		queue:  newEventQueue(),
		logger: logger.With("component", "recorder", "run", runID),
	}
}

// RunID returns the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}

// OnTransition implements engine.Observer. Never blocks.
func (r *Recorder) OnTransition(t engine.Transition) {
	if !r.queue.Put(event{transition: &t}) {
		r.logger.Warn("transition dropped after close", "from", t.From.String(), "to", t.To.String())
	}
}

// OnStatusChange implements engine.Observer. Never blocks.
func (r *Recorder) OnStatusChange(c engine.StatusChange) {
	if !r.queue.Put(event{change: &c}) {
		r.logger.Warn("status change dropped after close", "module", c.Module.String())
	}
}

// Close stops accepting events. Run writes what is already queued and
// then returns.
func (r *Recorder) Close() {
	r.queue.Close()
}

// Pending returns the number of queued, unwritten events.
func (r *Recorder) Pending() int {
	return r.queue.Len()
}

// maxBatch bounds the events written per SQLite transaction.
const maxBatch = 256

// Run drains the queue into the store until Close has been called and the
// queue is empty, or ctx ends.
//
// Events queued together are written in one transaction. If that
// transaction fails the batch is retried one event at a time, and an event
// that still fails is logged and skipped: the recorder never stalls the
// run it is recording.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		if batch := r.queue.Take(maxBatch); len(batch) > 0 {
			r.write(ctx, batch)
			continue
		}
		if r.queue.Drained() {
			r.logger.Debug("recorder drained", "written", r.written, "failures", r.failures)
			return nil
		}

		select {
		case <-ctx.Done():
			if n := r.queue.Len(); n > 0 {
				r.logger.Warn("recorder cancelled with pending events", "pending", n)
			}
			return ctx.Err()
		case <-r.queue.Ready():
		}
	}
}

func (r *Recorder) write(ctx context.Context, batch []event) {
	numberedBatch := make([]numbered, len(batch))
	for i, ev := range batch {
		if ev.transition != nil {
			r.transitions++
			numberedBatch[i] = numbered{ordinal: r.transitions, event: ev}
		} else {
			r.changes++
			numberedBatch[i] = numbered{ordinal: r.changes, event: ev}
		}
	}

	err := r.store.writeBatch(ctx, r.runID, numberedBatch)
	if err == nil {
		r.written += len(batch)
		return
	}
	if len(batch) > 1 {
		r.logger.Warn("batch write failed, retrying per event", "events", len(batch), "error", err)
	}

	for _, n := range numberedBatch {
		if err := n.insert(ctx, r.store.db, r.runID); err != nil {
			r.failures++
			r.logger.Error("record event failed", "ordinal", n.ordinal, "error", err)
			continue
		}
		r.written++
	}
}
