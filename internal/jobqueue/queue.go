package jobqueue

import (
	"sync"
	"sync/atomic"

	"github.com/dreamware/pvfsmeta/internal/errs"
)

// Job is the unit of work the completion layer tracks. Data is an opaque
// pointer the lock manager and other collaborators store but never
// interpret, per spec.md §6's "stores, but never interprets, a user
// pointer and a job descriptor pointer".
type Job struct {
	ID         uint64
	Data       any
	TimeoutSec int
	OnComplete func(job Job, timedOut bool)
}

// Queue tracks in-flight jobs and their timeout-wheel membership. Callers
// create a job, periodically report progress to re-arm its timeout, and
// eventually either Complete it or let Sweep time it out.
type Queue struct {
	wheel *TimeoutWheel

	mu   sync.Mutex
	jobs map[uint64]Job

	nextID atomic.Uint64
}

// NewQueue creates an empty job queue.
func NewQueue() *Queue {
	return &Queue{wheel: NewTimeoutWheel(), jobs: make(map[uint64]Job)}
}

// Submit registers a new job and arms its timeout, returning the job's
// freshly assigned ID.
func (q *Queue) Submit(data any, timeoutSec int, nowSec int64, onComplete func(Job, bool)) uint64 {
	id := q.nextID.Add(1)
	job := Job{ID: id, Data: data, TimeoutSec: timeoutSec, OnComplete: onComplete}

	q.mu.Lock()
	q.jobs[id] = job
	q.mu.Unlock()

	q.wheel.Add(id, nowSec, timeoutSec)
	return id
}

// Progress re-arms jobID's timeout from nowSec, used whenever the flow
// behind a job makes measurable forward progress.
func (q *Queue) Progress(jobID uint64, nowSec int64) error {
	q.mu.Lock()
	job, ok := q.jobs[jobID]
	q.mu.Unlock()
	if !ok {
		return errs.New(errs.NotFound, "unknown job %d", jobID)
	}
	q.wheel.Rearm(jobID, nowSec, job.TimeoutSec)
	return nil
}

// Complete removes jobID from the timeout wheel and invokes its
// completion callback with timedOut=false.
func (q *Queue) Complete(jobID uint64) error {
	q.mu.Lock()
	job, ok := q.jobs[jobID]
	if ok {
		delete(q.jobs, jobID)
	}
	q.mu.Unlock()
	if !ok {
		return errs.New(errs.NotFound, "unknown job %d", jobID)
	}
	q.wheel.Remove(jobID)
	if job.OnComplete != nil {
		job.OnComplete(job, false)
	}
	return nil
}

// Cancel removes jobID without invoking its completion callback,
// mirroring revise(ReleaseAll)'s idempotent-cancellation contract: a
// cancel of an already-gone job is a no-op.
func (q *Queue) Cancel(jobID uint64) {
	q.mu.Lock()
	delete(q.jobs, jobID)
	q.mu.Unlock()
	q.wheel.Remove(jobID)
}

// Sweep expires every job whose timeout bucket is at or before nowSec,
// removes it from the queue, and invokes its completion callback with
// timedOut=true. Jobs re-armed via Progress after their original bucket
// was computed are not swept, since Rearm moves them to a later bucket.
func (q *Queue) Sweep(nowSec int64) int {
	expired := q.wheel.Sweep(nowSec)

	var fired int
	for _, id := range expired {
		q.mu.Lock()
		job, ok := q.jobs[id]
		if ok {
			delete(q.jobs, id)
		}
		q.mu.Unlock()
		if !ok {
			continue
		}
		if job.OnComplete != nil {
			job.OnComplete(job, true)
		}
		fired++
	}
	return fired
}

// Len returns the number of jobs currently tracked.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
