package processor

import (
	"log/slog"
	"time"
)

// Observer is notified around every processor operation. Observe is
// called before the work starts; the returned function is called with the
// outcome once it ends.
type Observer interface {
	Observe(op, noteID string) func(err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(op, noteID string) func(err error)

func (f ObserverFunc) Observe(op, noteID string) func(err error) { return f(op, noteID) }

type nopObserver struct{}

func (nopObserver) Observe(string, string) func(error) { return func(error) {} }

// LogObserver logs each operation with its duration.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) Observe(op, noteID string) func(err error) {
	start := time.Now()
	return func(err error) {
		attrs := []any{
			slog.String("op", op),
			slog.String("note_id", noteID),
			slog.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			o.Logger.Warn("processor: operation failed", append(attrs, slog.String("error", err.Error()))...)
			return
		}
		o.Logger.Debug("processor: operation done", attrs...)
	}
}
