package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hively/internal/models"

	"go.uber.org/zap"
)

// Job is the ephemeral unit of delivery work. It carries a copy of the
// notification content plus the resolved channel targets; the durable record
// lives in the store, so a lost job only leaves channel status at pending.
type Job struct {
	NotificationID string
	UserID         string
	Type           string
	Title          string
	Body           string
	Metadata       models.JSONMap
	Targets        models.DeliveryTargets
}

// Handler consumes one job. An error (or panic) marks the job failed; it is
// never retried and never blocks the jobs behind it.
type Handler func(ctx context.Context, job Job) error

// Queue is an in-process FIFO job runner with a fixed concurrency bound.
// Jobs are held in memory only; the notification store remains the source
// of truth across restarts.
type Queue struct {
	mu          sync.Mutex
	jobs        []Job
	inFlight    int
	concurrency int
	handler     Handler
	onDone      func(Job, error)
	wg          sync.WaitGroup
	logger      *zap.SugaredLogger
}

func New(concurrency int, logger *zap.SugaredLogger) *Queue {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Queue{concurrency: concurrency, logger: logger}
}

// Process registers the single consumer and starts dispatching anything
// already enqueued. Call once.
func (q *Queue) Process(h Handler) {
	q.mu.Lock()
	q.handler = h
	q.dispatchLocked()
	q.mu.Unlock()
}

// OnDone registers a hook observing job completion; err is nil on success.
// Diagnostics only, must not block.
func (q *Queue) OnDone(fn func(Job, error)) {
	q.mu.Lock()
	q.onDone = fn
	q.mu.Unlock()
}

// Enqueue appends the job and triggers dispatch.
func (q *Queue) Enqueue(job Job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.dispatchLocked()
	q.mu.Unlock()
}

// Len returns the number of jobs waiting (not in flight).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Drain waits until all enqueued and in-flight jobs complete, up to timeout.
// Returns false if the timeout elapsed first.
func (q *Queue) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (q *Queue) dispatchLocked() {
	for q.handler != nil && q.inFlight < q.concurrency && len(q.jobs) > 0 {
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.inFlight++
		q.wg.Add(1)
		go q.run(job)
	}
}

func (q *Queue) run(job Job) {
	defer q.wg.Done()
	err := q.invoke(job)
	if err != nil && q.logger != nil {
		q.logger.Errorw("delivery job failed", "notification_id", job.NotificationID, "error", err)
	}
	q.mu.Lock()
	done := q.onDone
	q.inFlight--
	q.dispatchLocked()
	q.mu.Unlock()
	if done != nil {
		done(job, err)
	}
}

func (q *Queue) invoke(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery handler panicked: %v", r)
		}
	}()
	return q.handler(context.Background(), job)
}
