// Package timer provides the job scheduler that drives delayed and
// asynchronous activities. A job is owned by one process instance and
// fires at most once.
package timer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dogmatiq/dodeca/logging"
)

// Job is a unit of deferred work owned by a process instance. A zero At
// means the job is due immediately (an asynchronous continuation rather
// than a timer).
type Job struct {
	InstanceID string
	NodeID     string
	At         time.Time
}

type jobKey struct {
	instanceID string
	nodeID     string
}

// Scheduler stores pending jobs and fires them when due. Firing is
// idempotent: a job is removed as it is handed to the fire callback, so
// it can never fire twice.
type Scheduler struct {
	// Logger is the target for messages about failed job executions. If
	// it is nil, logging.DefaultLogger is used.
	Logger logging.Logger

	m    sync.Mutex
	jobs map[jobKey]Job
	wake chan struct{}
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		jobs: map[jobKey]Job{},
		wake: make(chan struct{}, 1),
	}
}

// Schedule stores a job. Scheduling for a token that already has a job
// replaces it.
func (s *Scheduler) Schedule(j Job) {
	s.m.Lock()
	s.jobs[jobKey{j.InstanceID, j.NodeID}] = j
	s.m.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Cancel removes the job owned by the given token. It reports whether a
// job was removed, which is how callers distinguish the first execution
// from a repeat.
func (s *Scheduler) Cancel(instanceID, nodeID string) bool {
	s.m.Lock()
	defer s.m.Unlock()

	k := jobKey{instanceID, nodeID}
	if _, ok := s.jobs[k]; !ok {
		return false
	}
	delete(s.jobs, k)
	return true
}

// CancelInstance removes every job owned by the given instance.
func (s *Scheduler) CancelInstance(instanceID string) {
	s.m.Lock()
	defer s.m.Unlock()

	for k := range s.jobs {
		if k.instanceID == instanceID {
			delete(s.jobs, k)
		}
	}
}

// Jobs returns the pending jobs owned by the given instance, ordered by
// due time.
func (s *Scheduler) Jobs(instanceID string) []Job {
	s.m.Lock()
	defer s.m.Unlock()

	var jobs []Job
	for _, j := range s.jobs {
		if j.InstanceID == instanceID {
			jobs = append(jobs, j)
		}
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].At.Before(jobs[k].At)
	})
	return jobs
}

// Next returns the earliest due time among pending jobs.
func (s *Scheduler) Next() (time.Time, bool) {
	s.m.Lock()
	defer s.m.Unlock()

	var (
		next  time.Time
		found bool
	)
	for _, j := range s.jobs {
		if !found || j.At.Before(next) {
			next = j.At
			found = true
		}
	}
	return next, found
}

// popDue removes and returns every job due at or before now.
func (s *Scheduler) popDue(now time.Time) []Job {
	s.m.Lock()
	defer s.m.Unlock()

	var due []Job
	for k, j := range s.jobs {
		if !j.At.After(now) {
			due = append(due, j)
			delete(s.jobs, k)
		}
	}
	sort.Slice(due, func(i, k int) bool {
		return due[i].At.Before(due[k].At)
	})
	return due
}

// Run fires due jobs via the given callback until ctx is canceled. A
// callback error is logged and does not stop the loop; the failed job is
// not re-queued.
func (s *Scheduler) Run(ctx context.Context, fire func(context.Context, Job) error) error {
	for {
		next, ok := s.Next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if d := time.Until(next); d > 0 {
			// Wait out the delay, but re-evaluate if a new job is
			// scheduled in the meantime, since it may be due sooner.
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-s.wake:
				t.Stop()
				continue
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		}

		for _, j := range s.popDue(time.Now()) {
			if err := fire(ctx, j); err != nil {
				logging.Log(
					s.Logger,
					"job for node %s of instance %s failed: %s",
					j.NodeID,
					j.InstanceID,
					err,
				)
			}
		}
	}
}
