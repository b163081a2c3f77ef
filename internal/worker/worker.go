package worker

import "context"

// Queue serializes jobs for one conversation. Every queue shares a
// process-wide semaphore, so total in-flight work stays bounded while
// conversations never block each other's ordering.
type Queue[J any] struct {
	jobs chan J
}

// StartQueue launches the consumer goroutine for one conversation. It exits
// when ctx is cancelled or the queue channel is closed.
func StartQueue[J any](ctx context.Context, buffer int, sem chan struct{}, handle func(context.Context, J)) *Queue[J] {
	if buffer <= 0 {
		buffer = 16
	}
	q := &Queue[J]{jobs: make(chan J, buffer)}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-q.jobs:
				if !ok {
					return
				}
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				func() {
					defer func() { <-sem }()
					handle(ctx, job)
				}()
			}
		}
	}()
	return q
}

// Enqueue submits a job, honoring both the caller's context and the worker
// pool's lifetime.
func (q *Queue[J]) Enqueue(ctx, workersCtx context.Context, job J) error {
	if ctx == nil {
		ctx = workersCtx
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-workersCtx.Done():
		return workersCtx.Err()
	case q.jobs <- job:
		return nil
	}
}

// Backlog reports queued-but-unstarted jobs.
func (q *Queue[J]) Backlog() int {
	return len(q.jobs)
}
