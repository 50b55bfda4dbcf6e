package indexing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/standardbeagle/rubyidx/internal/debug"
)

// ErrWriterClosed is returned for work submitted after Close, and to
// callers waiting on work that Close discarded
var ErrWriterClosed = errors.New("writer lane is closed")

// Job is a unit of index mutation run on the writer lane
type Job func(ctx context.Context) error

type pendingJob struct {
	run  Job
	done chan error // nil for fire-and-forget jobs
	ctx  context.Context
}

// Writer is the single writer lane: one goroutine runs every index
// mutation in submission order. Jobs are keyed (by file path); submitting
// a key that is still queued replaces the queued job in place, so a burst
// of edits to one file costs one reindex.
type Writer struct {
	mu       sync.Mutex
	queue    []string
	pending  map[string]pendingJob
	barriers uint64
	closed   bool

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWriter starts the lane goroutine
func NewWriter() *Writer {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Writer{
		pending: make(map[string]pendingJob),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Submit queues job under key without waiting for it. Latest wins: a
// queued job with the same key is replaced and keeps its queue position.
func (w *Writer) Submit(key string, job Job) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if _, queued := w.pending[key]; !queued {
		w.queue = append(w.queue, key)
	}
	w.pending[key] = pendingJob{run: job}
	w.signal()
	return nil
}

// Do runs job on the lane after everything submitted before it and waits
// for the result. Cancelling ctx abandons the wait; a job that has not
// started yet is then skipped, one that has started sees ctx cancelled.
func (w *Writer) Do(ctx context.Context, job Job) error {
	done := make(chan error, 1)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	w.barriers++
	key := fmt.Sprintf("\x00barrier-%d", w.barriers)
	w.queue = append(w.queue, key)
	w.pending[key] = pendingJob{run: job, done: done, ctx: ctx}
	w.signal()
	w.mu.Unlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every job submitted before the call has run
func (w *Writer) Flush(ctx context.Context) error {
	return w.Do(ctx, func(context.Context) error { return nil })
}

// Pending reports the number of queued jobs
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Close stops the lane. The running job sees its context cancelled;
// queued jobs are dropped, not flushed.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	return nil
}

// signal wakes the lane. Callers hold mu.
func (w *Writer) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Writer) next() (string, pendingJob, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return "", pendingJob{}, false
	}
	key := w.queue[0]
	w.queue[0] = ""
	w.queue = w.queue[1:]
	job := w.pending[key]
	delete(w.pending, key)
	return key, job, true
}

func (w *Writer) run() {
	defer w.wg.Done()
	defer w.drop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.wake:
		}

		for w.ctx.Err() == nil {
			key, job, ok := w.next()
			if !ok {
				break
			}
			w.execute(key, job)
		}
	}
}

func (w *Writer) execute(key string, job pendingJob) {
	if job.done == nil {
		if err := job.run(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("index update for %s failed: %v", key, err)
		}
		return
	}

	if err := job.ctx.Err(); err != nil {
		job.done <- err
		return
	}
	ctx, cancel := context.WithCancel(job.ctx)
	stop := context.AfterFunc(w.ctx, cancel)
	err := job.run(ctx)
	stop()
	cancel()
	job.done <- err
}

// drop releases everything still queued when the lane stops
func (w *Writer) drop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	dropped := 0
	for _, key := range w.queue {
		if job := w.pending[key]; job.done != nil {
			job.done <- ErrWriterClosed
		}
		dropped++
	}
	w.queue = nil
	clear(w.pending)
	if dropped > 0 {
		debug.LogIndexing("writer lane closed with %d queued jobs dropped", dropped)
	}
}
