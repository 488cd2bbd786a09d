// Package jobqueue provides a queue for marshaling work from network
// goroutines onto the owner's loop. Handlers enqueue closures; the
// owner drains them at a point where touching its state is safe.
package jobqueue

import "sync"

// Job is a unit of deferred work
type Job func()

// Queue is a FIFO of jobs, safe for concurrent enqueue. Drain is meant
// to be called from a single owner goroutine.
type Queue struct {
	mu   sync.Mutex
	jobs []Job
}

// New creates an empty Queue
func New() *Queue {
	return &Queue{}
}

// Enqueue appends a job. Safe from any goroutine, including from a job
// currently running inside Drain; such jobs run on the next Drain.
func (q *Queue) Enqueue(job Job) {
	if job == nil {
		return
	}
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
}

// Drain swaps out the current batch and runs it in order. Jobs
// enqueued while the batch runs are left for the next call, so a job
// that re-enqueues itself cannot starve the owner loop.
func (q *Queue) Drain() int {
	q.mu.Lock()
	batch := q.jobs
	q.jobs = nil
	q.mu.Unlock()

	for _, job := range batch {
		job()
	}
	return len(batch)
}

// Len reports the number of queued jobs
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
