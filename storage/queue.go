package storage

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/simorgh/advanced-logger/models"
)

// Queued wraps a backend so Store enqueues the record for a background worker
// and returns immediately. All other operations pass straight through to the
// wrapped backend. When the queue is full the record is stored synchronously
// instead of being dropped.
type Queued struct {
	Backend

	queue    chan *models.LogRecord
	done     chan struct{}
	wg       sync.WaitGroup
	fallback zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewQueued starts the worker goroutine. Worker store failures are written to
// the fallback sink.
func NewQueued(backend Backend, size int, fallback zerolog.Logger) *Queued {
	if size < 1 {
		size = 1000
	}
	q := &Queued{
		Backend:  backend,
		queue:    make(chan *models.LogRecord, size),
		done:     make(chan struct{}),
		fallback: fallback,
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Store enqueues the record. The closed check and the enqueue happen under the
// same lock, so a record can never slip into the queue after Close has drained
// it; once closed (or when the queue is full) the write degrades to a
// synchronous store against the wrapped backend.
func (q *Queued) Store(ctx context.Context, rec *models.LogRecord) error {
	q.mu.Lock()
	if !q.closed {
		select {
		case q.queue <- rec:
			q.mu.Unlock()
			return nil
		default:
		}
	}
	q.mu.Unlock()
	return q.Backend.Store(ctx, rec)
}

func (q *Queued) run() {
	defer q.wg.Done()
	for {
		select {
		case rec := <-q.queue:
			q.store(rec)
		case <-q.done:
			// Drain whatever is left before exiting.
			for {
				select {
				case rec := <-q.queue:
					q.store(rec)
				default:
					return
				}
			}
		}
	}
}

// store persists one queued record. There is no caller left to return the
// error to, so a failure is recorded on the fallback sink with enough of the
// record to reconstruct what was lost.
func (q *Queued) store(rec *models.LogRecord) {
	if err := q.Backend.Store(context.Background(), rec); err != nil {
		q.fallback.Error().Err(err).
			Str("level", string(rec.Level)).
			Str("message", rec.Message).
			Msg("queued log storage failed, record dropped")
	}
}

// Close drains the queue, stops the worker and closes the wrapped backend.
func (q *Queued) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	close(q.done)
	q.wg.Wait()
	return q.Backend.Close()
}
