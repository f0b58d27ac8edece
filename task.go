package depositflow

import (
	"context"
	"fmt"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/meridianbank/depositflow/process"
)

// Start begins a new instance of the given definition and advances it
// until every token is parked or the instance finishes.
//
// The instance is returned even when an error is returned, so the
// caller can inspect how far it got.
func (e *Engine) Start(
	ctx context.Context,
	definitionKey string,
	businessKey string,
	vars process.Variables,
) (*Instance, error) {
	e.m.Lock()
	defer e.m.Unlock()

	if e.suspended[definitionKey] {
		return nil, fmt.Errorf("%w: %q", ErrDefinitionSuspended, definitionKey)
	}

	inst, err := e.spawn(definitionKey, businessKey, "", vars.Clone(), "", "")
	if err != nil {
		return nil, err
	}

	logging.Log(
		e.logger,
		"starting %q instance %s (business key %q)",
		definitionKey,
		inst.id,
		businessKey,
	)

	return inst, e.pump(ctx)
}

// CompleteTask finishes a waiting user task, merging the given
// variables into the instance before it advances.
func (e *Engine) CompleteTask(
	ctx context.Context,
	ref TaskRef,
	vars process.Variables,
) error {
	e.m.Lock()
	defer e.m.Unlock()

	inst, ok := e.instances[ref.InstanceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, ref.InstanceID)
	}

	if e.suspended[inst.definition.Key] {
		return fmt.Errorf("%w: %q", ErrDefinitionSuspended, inst.definition.Key)
	}

	t := inst.tokenAt(ref.NodeID)
	if t == nil {
		return fmt.Errorf(
			"%w: node %q of instance %s",
			ErrTaskNotWaiting,
			ref.NodeID,
			ref.InstanceID,
		)
	}

	if n, _ := inst.definition.Node(ref.NodeID); n.Kind != process.UserTask {
		return fmt.Errorf(
			"%w: node %q of instance %s is not a user task",
			ErrTaskNotWaiting,
			ref.NodeID,
			ref.InstanceID,
		)
	}

	inst.vars.Merge(vars)
	t.ready = true
	e.enqueue(inst)

	return e.pump(ctx)
}

// PendingTasks returns every waiting user task across all instances.
func (e *Engine) PendingTasks() []Task {
	e.m.Lock()
	defer e.m.Unlock()

	var tasks []Task
	for _, inst := range e.order {
		tasks = append(tasks, e.pendingTasksOf(inst)...)
	}
	return tasks
}

// TasksByName returns the waiting user tasks with the given
// human-facing name.
func (e *Engine) TasksByName(name string) []Task {
	var tasks []Task
	for _, t := range e.PendingTasks() {
		if t.Name == name {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// pendingTasksOf must be called with the engine lock held.
func (e *Engine) pendingTasksOf(inst *Instance) []Task {
	var tasks []Task
	for _, t := range inst.tokens {
		if !t.waiting || t.ready {
			continue
		}
		n, _ := inst.definition.Node(t.node)
		if n.Kind != process.UserTask {
			continue
		}
		tasks = append(tasks, Task{
			Ref: TaskRef{
				InstanceID: inst.id,
				NodeID:     n.ID,
			},
			Name:          n.TaskName,
			DefinitionKey: inst.definition.Key,
			BusinessKey:   inst.businessKey,
		})
	}
	return tasks
}
