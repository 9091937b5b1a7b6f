package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"itef-puzzle-service/internal/domain"
)

// Mirror is a one-way outbound queue for remote writes. Callers never observe
// the outcome of a job; failures only show up in the log.
type Mirror struct {
	log     *zap.Logger
	timeout time.Duration
	jobs    chan mirrorJob
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type mirrorJob struct {
	op   string
	fn   func(ctx context.Context) error
	done chan struct{}
}

// NewMirror starts a single worker so jobs for the same document apply in order.
func NewMirror(log *zap.Logger, queueSize int, timeout time.Duration) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	m := &Mirror{
		log:     log,
		timeout: timeout,
		jobs:    make(chan mirrorJob, queueSize),
	}
	m.wg.Add(1)
	go m.run()
	return m
}

// Enqueue schedules fn without blocking. A full or closed queue drops the job.
func (m *Mirror) Enqueue(op string, fn func(ctx context.Context) error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		m.log.Warn("mirror job dropped", zap.String("op", op), zap.Error(domain.ErrMirrorClosed))
		return
	}
	select {
	case m.jobs <- mirrorJob{op: op, fn: fn}:
	default:
		m.log.Warn("mirror queue full, job dropped", zap.String("op", op))
	}
}

// Flush blocks until every job queued before the call has run.
func (m *Mirror) Flush(ctx context.Context) error {
	done := make(chan struct{})
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return domain.ErrMirrorClosed
	}
	select {
	case m.jobs <- mirrorJob{op: "flush", done: done}:
	case <-ctx.Done():
		m.mu.RUnlock()
		return ctx.Err()
	}
	m.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for the queue to drain.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.jobs)
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Mirror) run() {
	defer m.wg.Done()
	for job := range m.jobs {
		if job.done != nil {
			close(job.done)
			continue
		}
		m.exec(job)
	}
}

func (m *Mirror) exec(job mirrorJob) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("mirror job panicked", zap.String("op", job.op), zap.Any("panic", r))
		}
	}()
	if err := job.fn(ctx); err != nil {
		m.log.Warn("remote sync failed", zap.Error(&domain.RemoteSyncError{Op: job.op, Err: err}))
	}
}
