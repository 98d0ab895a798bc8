package audit

import (
	"context"
	"errors"
	"log/slog"
)

// ErrBufferFull is returned by an async publisher whose queue is saturated.
var ErrBufferFull = errors.New("audit buffer full")

// Worker consumes audit events from a channel and hands them to the sink.
// Sink failures are logged and do not stop the worker.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: slog.Default()}
}

// WithLogger sets the logger used for sink failures.
func (w *Worker) WithLogger(logger *slog.Logger) *Worker {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// Run drains events until ctx is cancelled, then flushes what is queued.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case event := <-w.inbox:
			w.append(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			w.append(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) append(ctx context.Context, event Event) {
	if err := w.sink.Append(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "audit sink append failed",
			"error", err,
			"action", event.Action,
		)
	}
}
