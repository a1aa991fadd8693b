// Package aggregate applies per-symbol and per-user counter updates off the
// request path. Handlers enqueue increments and respond immediately; a
// single worker drains the queue into the document store with bounded
// retries.
package aggregate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stocktalk/internal/docstore"
	"stocktalk/internal/util"
)

// Update is one atomic counter increment against the document store.
type Update struct {
	Collection string
	ID         string
	Field      string
	Delta      int64
}

// Writer queues counter updates and applies them asynchronously.
type Writer struct {
	store docstore.Store
	log   *slog.Logger

	ch       chan Update
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWriter creates a Writer with the given queue depth.
func NewWriter(store docstore.Store, buffer int, log *slog.Logger) *Writer {
	if buffer <= 0 {
		buffer = 256
	}
	return &Writer{
		store: store,
		log:   log.With("component", "aggregate"),
		ch:    make(chan Update, buffer),
	}
}

// Start launches the worker goroutine. The context bounds individual store
// writes, not the worker's lifetime; call Stop to shut down.
func (w *Writer) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for u := range w.ch {
			w.apply(u)
		}
	}()
}

// Enqueue submits an update without blocking. When the queue is full the
// update is dropped and logged; counters are advisory, not authoritative.
func (w *Writer) Enqueue(u Update) {
	select {
	case w.ch <- u:
	default:
		w.log.Warn("aggregate queue full, dropping update",
			"collection", u.Collection, "id", u.ID, "field", u.Field)
	}
}

// Stop closes the queue and blocks until all enqueued updates are applied.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() { close(w.ch) })
	w.wg.Wait()
}

func (w *Writer) apply(u Update) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := util.Retry(ctx, 3, 50*time.Millisecond, func() error {
		return w.store.Increment(ctx, u.Collection, u.ID, u.Field, u.Delta)
	})
	if err != nil {
		w.log.Error("applying aggregate update",
			"collection", u.Collection, "id", u.ID, "field", u.Field, "err", err)
	}
}
