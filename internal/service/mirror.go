package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/travelog/travelog/internal/repository"
)

type mirrorJob struct {
	name  string
	write func(ctx context.Context) error
	done  chan struct{} // set on flush markers
}

// Mirror applies cache writes in the background, one at a time, in the order
// they were queued. Failures are logged and never reach the caller.
type Mirror struct {
	mu     sync.Mutex
	queue  []mirrorJob
	wake   chan struct{}
	closed bool
	stop   chan struct{}
	done   chan struct{}
}

func NewMirror() *Mirror {
	m := &Mirror{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go m.run()
	return m
}

// Enqueue schedules write. It never blocks.
func (m *Mirror) Enqueue(name string, write func(ctx context.Context) error) {
	m.push(mirrorJob{name: name, write: write})
}

// Flush waits until every write queued before the call has been applied.
func (m *Mirror) Flush(ctx context.Context) error {
	marker := mirrorJob{done: make(chan struct{})}
	if !m.push(marker) {
		return nil
	}

	select {
	case <-marker.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close applies what is queued and stops the worker.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stop)
	<-m.done
}

func (m *Mirror) push(job mirrorJob) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		slog.Warn("mirror closed, dropping cache write", "write", job.name)
		return false
	}
	m.queue = append(m.queue, job)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

func (m *Mirror) next() (mirrorJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return mirrorJob{}, false
	}
	job := m.queue[0]
	m.queue = m.queue[1:]
	return job, true
}

func (m *Mirror) run() {
	defer close(m.done)

	for {
		for {
			job, ok := m.next()
			if !ok {
				break
			}
			m.apply(job)
		}

		select {
		case <-m.wake:
		case <-m.stop:
			for {
				job, ok := m.next()
				if !ok {
					return
				}
				m.apply(job)
			}
		}
	}
}

func (m *Mirror) apply(job mirrorJob) {
	if job.done != nil {
		close(job.done)
		return
	}

	err := job.write(context.Background())
	if err == nil {
		return
	}

	if repository.IsFatal(err) {
		slog.Error("local store is corrupt, clear the cache", "write", job.name, "error", err)
		return
	}
	slog.Error("cache write failed", "write", job.name, "error", err)
}
