package depositflow

import (
	"context"
	"fmt"

	"github.com/meridianbank/depositflow/timer"
)

// ExecuteJob fires a pending job immediately, without waiting for its
// due time or for the engine's Run loop. Executing a job that is not
// pending, including one that has already fired, returns
// ErrJobNotPending.
func (e *Engine) ExecuteJob(ctx context.Context, instanceID, nodeID string) error {
	e.m.Lock()
	inst, ok := e.instances[instanceID]
	if !ok {
		e.m.Unlock()
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	if e.suspended[inst.definition.Key] {
		e.m.Unlock()
		return fmt.Errorf("%w: %q", ErrDefinitionSuspended, inst.definition.Key)
	}
	e.m.Unlock()

	if !e.sched.Cancel(instanceID, nodeID) {
		return fmt.Errorf(
			"%w: node %q of instance %s",
			ErrJobNotPending,
			nodeID,
			instanceID,
		)
	}

	return e.resume(ctx, instanceID, nodeID, nil)
}

// PendingJobs returns the jobs scheduled for the given instance,
// ordered by due time.
func (e *Engine) PendingJobs(instanceID string) []timer.Job {
	return e.sched.Jobs(instanceID)
}
