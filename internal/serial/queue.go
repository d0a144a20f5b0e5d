// Package serial runs jobs one at a time, in submission order, without
// blocking the submitter.
package serial

import "sync"

// Queue is an unbounded FIFO drained by at most one goroutine at a time.
// The goroutine only exists while there is work queued.
type Queue struct {
	mu      sync.Mutex
	jobs    []func()
	running bool
	closed  bool
	idle    *sync.Cond
}

func New() *Queue {
	q := &Queue{}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Push schedules job after every job pushed before it. It returns false when
// the queue is closed.
func (q *Queue) Push(job func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.jobs = append(q.jobs, job)
	if !q.running {
		q.running = true
		go q.drain()
	}
	return true
}

// Close drops the jobs that have not started yet. A job already running is
// left to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	clear(q.jobs)
	q.jobs = nil
}

// Wait blocks until no job is running or queued.
func (q *Queue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.running {
		q.idle.Wait()
	}
}

// Len returns the number of jobs waiting to start.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.running = false
			q.idle.Broadcast()
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		q.run(job)
	}
}

func (q *Queue) run(job func()) {
	// a panicking job must not take the drain goroutine with it
	defer func() { _ = recover() }()
	job()
}
