package events

import (
	"context"
	"errors"
	"sync"

	"blogpost-backend/pkg/logger"

	"go.uber.org/zap"
)

var (
	ErrQueueFull   = errors.New("index queue is full")
	ErrQueueClosed = errors.New("index queue is closed")
)

// LocalQueue dispatches events to an in-process worker pool.
type LocalQueue struct {
	handler     Handler
	jobQueue    chan Event
	workerWg    sync.WaitGroup
	workerCount int
	started     bool
	closed      bool
	mu          sync.Mutex
	log         *zap.Logger
}

func NewLocalQueue(handler Handler, workerCount, capacity int) *LocalQueue {
	if workerCount <= 0 {
		workerCount = 3
	}
	if capacity <= 0 {
		capacity = 500
	}
	return &LocalQueue{
		handler:     handler,
		jobQueue:    make(chan Event, capacity),
		workerCount: workerCount,
		log:         logger.Named("IndexWorker"),
	}
}

func (q *LocalQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started || q.closed {
		return
	}
	for i := 0; i < q.workerCount; i++ {
		q.workerWg.Add(1)
		go q.worker(i)
	}
	q.started = true
	q.log.Info("started workers", zap.Int("count", q.workerCount))
}

// Publish enqueues without blocking. A full queue drops the event.
func (q *LocalQueue) Publish(_ context.Context, e Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobQueue <- e:
		return nil
	default:
		q.log.Warn("queue full, dropping event", zap.String("type", string(e.Type)), zap.String("post_id", e.PostID))
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for queued ones to drain.
func (q *LocalQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobQueue)
	q.mu.Unlock()

	q.workerWg.Wait()
	q.log.Info("all workers stopped")
	return nil
}

func (q *LocalQueue) worker(id int) {
	defer q.workerWg.Done()
	for e := range q.jobQueue {
		if err := q.handler.Handle(context.Background(), e); err != nil {
			q.log.Error("dropping event after failure",
				zap.Int("worker", id),
				zap.String("type", string(e.Type)),
				zap.String("post_id", e.PostID),
				zap.Error(err),
			)
		}
	}
}
