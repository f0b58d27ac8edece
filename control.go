package depositflow

import (
	"context"
	"fmt"

	"github.com/dogmatiq/dodeca/logging"
)

// Suspend halts the definition: no new instances start, and every
// instance already in flight stops accepting resumption events. Task
// completions, job executions and message deliveries are refused, and
// pending timer jobs are withdrawn from the scheduler, until the
// definition is resumed. Instance state is kept.
func (e *Engine) Suspend(definitionKey string) error {
	e.m.Lock()
	defer e.m.Unlock()

	if _, ok := e.registry.Definition(definitionKey); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDefinition, definitionKey)
	}

	if e.suspended[definitionKey] {
		return nil
	}
	e.suspended[definitionKey] = true

	for _, inst := range e.order {
		if inst.definition.Key != definitionKey {
			continue
		}
		for _, j := range e.sched.Jobs(inst.id) {
			if e.sched.Cancel(j.InstanceID, j.NodeID) {
				inst.parkedJobs = append(inst.parkedJobs, j)
			}
		}
	}

	logging.Log(e.logger, "definition %q suspended", definitionKey)

	return nil
}

// Resume lifts a suspension, handing the jobs withdrawn by Suspend
// back to the scheduler.
func (e *Engine) Resume(definitionKey string) error {
	e.m.Lock()
	defer e.m.Unlock()

	if _, ok := e.registry.Definition(definitionKey); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDefinition, definitionKey)
	}

	delete(e.suspended, definitionKey)

	for _, inst := range e.order {
		if inst.definition.Key != definitionKey {
			continue
		}
		for _, j := range inst.parkedJobs {
			e.sched.Schedule(j)
		}
		inst.parkedJobs = nil
	}

	logging.Log(e.logger, "definition %q resumed", definitionKey)

	return nil
}

// Terminate stops an instance and every live instance below it.
// Parents waiting on a terminated child keep waiting; terminating a
// finished instance is a no-op.
func (e *Engine) Terminate(ctx context.Context, instanceID string) error {
	e.m.Lock()
	defer e.m.Unlock()

	inst, ok := e.instances[instanceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}

	e.terminateTree(inst)
	e.flush(ctx)

	return nil
}

// terminateTree must be called with the engine lock held.
func (e *Engine) terminateTree(inst *Instance) {
	if inst.status == StatusEnded || inst.status == StatusTerminated {
		return
	}

	inst.status = StatusTerminated
	inst.tokens = nil
	inst.parkedJobs = nil
	e.cleanup(inst)
	e.dirty[inst] = struct{}{}

	logging.Log(
		e.logger,
		"instance %s of %q terminated by request",
		inst.id,
		inst.definition.Key,
	)

	for _, c := range e.order {
		if c.parentID == inst.id {
			e.terminateTree(c)
		}
	}
}

// InstanceByID returns the instance with the given ID. Finished
// instances remain addressable for inspection.
func (e *Engine) InstanceByID(instanceID string) (*Instance, bool) {
	e.m.Lock()
	defer e.m.Unlock()

	inst, ok := e.instances[instanceID]
	return inst, ok
}

// FindInstance returns the first instance of the definition with the
// given correlation ID, in start order.
func (e *Engine) FindInstance(definitionKey, correlationID string) (*Instance, bool) {
	e.m.Lock()
	defer e.m.Unlock()

	for _, inst := range e.order {
		if inst.definition.Key == definitionKey && inst.correlationID == correlationID {
			return inst, true
		}
	}
	return nil, false
}

// Instances returns every instance of the definition, in start order,
// or every instance when the key is empty.
func (e *Engine) Instances(definitionKey string) []*Instance {
	e.m.Lock()
	defer e.m.Unlock()

	var insts []*Instance
	for _, inst := range e.order {
		if definitionKey == "" || inst.definition.Key == definitionKey {
			insts = append(insts, inst)
		}
	}
	return insts
}
