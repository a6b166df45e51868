package session

import (
	"context"
	"sync"
	"time"

	"askai/internal/logging"
)

type writeJob struct {
	op        string
	sessionID string
	run       func(ctx context.Context) error

	// barrier is closed when the job reaches the front of the queue
	barrier chan struct{}
}

// writer applies durable writes one at a time, in submission order. Failures
// are logged and dropped.
type writer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []writeJob
	closed bool
	done   chan struct{}

	timeout time.Duration
	logger  *logging.Logger
}

func newWriter(timeout time.Duration, logger *logging.Logger) *writer {
	w := &writer{
		done:    make(chan struct{}),
		timeout: timeout,
		logger:  logger,
	}
	w.cond = sync.NewCond(&w.mu)
	go w.loop()
	return w
}

// enqueue never blocks. Jobs submitted after close are dropped.
func (w *writer) enqueue(job writeJob) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.logger.WithFields(map[string]interface{}{
			"operation":  job.op,
			"session_id": job.sessionID,
		}).Warn("dropping durable write after close")
		return
	}
	w.queue = append(w.queue, job)
	w.cond.Signal()
}

func (w *writer) loop() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		job := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		if job.barrier != nil {
			close(job.barrier)
			continue
		}
		w.run(job)
	}
}

func (w *writer) run(job writeJob) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	err := job.run(ctx)
	logger := w.logger.WithFields(map[string]interface{}{
		"operation":  job.op,
		"session_id": job.sessionID,
		"latency_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		logger.WithContext("error", err.Error()).Warn("durable write failed")
		return
	}
	logger.Debug("durable write completed")
}

// flush waits until every job queued so far has run
func (w *writer) flush(ctx context.Context) error {
	reached := make(chan struct{})
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return nil
	}
	w.queue = append(w.queue, writeJob{op: "flush", barrier: reached})
	w.cond.Signal()
	w.mu.Unlock()

	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drains the queue and stops the goroutine
func (w *writer) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()
	<-w.done
}
