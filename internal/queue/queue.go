package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/speak/internal/ttypes"
)

var (
	// ErrQueueClosed is returned when operations are attempted on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrCleared is delivered to requests dropped by Clear
	ErrCleared = errors.New("request cleared from queue")

	// ErrHandlerPanic wraps a panic raised while handling a request
	ErrHandlerPanic = errors.New("request handler panicked")
)

// Handler processes one request to completion. It runs on the drain goroutine.
type Handler func(ctx context.Context, req ttypes.SpeechRequest) error

// Queue holds pending speech requests and drains them one at a time.
// High-priority requests are inserted at the front, everything else is
// appended. A drain goroutine starts on demand and exits once the queue is
// empty, so at most one request is ever in flight.
type Queue struct {
	handler Handler
	logger  *log.Logger

	mu       sync.Mutex
	items    []*item
	draining bool
	paused   bool
	closed   bool
	stats    Stats

	wg sync.WaitGroup
}

// item is a queued request and the channel its result is delivered on.
type item struct {
	ctx      context.Context
	req      ttypes.SpeechRequest
	done     chan error
	enqueued time.Time
}

// Stats tracks queue activity
type Stats struct {
	TotalEnqueued     int64
	TotalProcessed    int64
	TotalFailed       int64
	TotalDropped      int64
	HighPriorityCount int64
	CurrentSize       int
	PeakSize          int
	LastEnqueue       time.Time
	LastDequeue       time.Time
	TotalWait         time.Duration
}

// New creates a queue that hands each request to handler. A nil logger
// uses log.Default().
func New(handler Handler, logger *log.Logger) *Queue {
	if logger == nil {
		logger = log.Default()
	}
	return &Queue{
		handler: handler,
		logger:  logger.WithPrefix("queue"),
	}
}

// Enqueue adds req with the given priority and starts a drain if none is
// running. The returned channel receives the handler's result exactly once.
func (q *Queue) Enqueue(ctx context.Context, req ttypes.SpeechRequest, priority ttypes.Priority) (<-chan error, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	it := &item{
		ctx:      ctx,
		req:      req,
		done:     make(chan error, 1),
		enqueued: time.Now(),
	}

	if priority == ttypes.PriorityHigh {
		q.items = append([]*item{it}, q.items...)
		q.stats.HighPriorityCount++
	} else {
		q.items = append(q.items, it)
	}

	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = it.enqueued
	if len(q.items) > q.stats.PeakSize {
		q.stats.PeakSize = len(q.items)
	}

	q.logger.Debug("request enqueued", "priority", priority, "pending", len(q.items))
	q.startDrainLocked()

	return it.done, nil
}

// startDrainLocked launches the drain goroutine unless one is running, the
// queue is paused, or there is nothing to do. Callers hold q.mu.
func (q *Queue) startDrainLocked() {
	if q.draining || q.paused || q.closed || len(q.items) == 0 {
		return
	}
	q.draining = true
	q.wg.Add(1)
	go q.drain()
}

// drain runs queued requests front to back until the queue is empty,
// paused or closed.
func (q *Queue) drain() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if q.paused || q.closed || len(q.items) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		it := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		now := time.Now()
		q.stats.LastDequeue = now
		q.stats.TotalWait += now.Sub(it.enqueued)
		q.mu.Unlock()

		err := q.run(it)

		q.mu.Lock()
		q.stats.TotalProcessed++
		if err != nil {
			q.stats.TotalFailed++
		}
		q.mu.Unlock()

		it.done <- err
	}
}

// run calls the handler for it. A panic becomes an ErrHandlerPanic result
// so the drain goroutine survives and later requests still run.
func (q *Queue) run(it *item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("handler panicked", "text", it.req.Text, "panic", r)
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return q.handler(it.ctx, it.req)
}

// Pause stops the queue from starting new requests. The request in flight,
// if any, runs to completion.
func (q *Queue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.paused = true
}

// Resume restarts draining after Pause.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.paused = false
	q.startDrainLocked()
}

// Paused reports whether the queue is paused.
func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.paused
}

// Busy reports whether a drain is running.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.draining
}

// Len returns the number of pending requests, excluding the one in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Clear drops every pending request. Each receives ErrCleared.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.dropLocked(ErrCleared)
}

// GetStats returns current queue statistics.
func (q *Queue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.CurrentSize = len(q.items)
	return stats
}

// Close rejects new requests, fails pending ones with ErrQueueClosed and
// waits for the request in flight to finish.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.dropLocked(ErrQueueClosed)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

func (q *Queue) dropLocked(reason error) int {
	n := len(q.items)
	for _, it := range q.items {
		it.done <- reason
	}
	q.items = nil
	q.stats.TotalDropped += int64(n)
	if n > 0 {
		q.logger.Debug("pending requests dropped", "count", n, "reason", reason)
	}
	return n
}
