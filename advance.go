package depositflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/google/uuid"
	"github.com/meridianbank/depositflow/correlation"
	"github.com/meridianbank/depositflow/persistence"
	"github.com/meridianbank/depositflow/process"
	"github.com/meridianbank/depositflow/timer"
)

// spawn creates a new instance with a token at the definition's start
// node and queues it for execution. It must be called with the engine
// lock held.
func (e *Engine) spawn(
	definitionKey string,
	businessKey string,
	correlationID string,
	vars process.Variables,
	parentID string,
	parentNode string,
) (*Instance, error) {
	def, ok := e.registry.Definition(definitionKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDefinition, definitionKey)
	}

	if vars == nil {
		vars = process.Variables{}
	}

	// A correlation ID carried in the variables takes precedence over
	// the one inherited from the spawning context.
	if cid := vars.String(e.opts.CorrelationVariable); cid != "" {
		correlationID = cid
	}

	inst := &Instance{
		engine:        e,
		id:            uuid.NewString(),
		definition:    def,
		businessKey:   businessKey,
		correlationID: correlationID,
		parentID:      parentID,
		parentNode:    parentNode,
		status:        StatusRunning,
		tokens:        []*token{{node: def.StartNode().ID}},
		vars:          vars,
	}

	e.instances[inst.id] = inst
	e.order = append(e.order, inst)
	e.enqueue(inst)

	logging.Debug(
		e.logger,
		"instance %s of %q spawned (business key %q)",
		inst.id,
		definitionKey,
		businessKey,
	)

	return inst, nil
}

// enqueue marks the instance as having tokens to advance. It must be
// called with the engine lock held.
func (e *Engine) enqueue(inst *Instance) {
	e.dirty[inst] = struct{}{}
	if inst.queued {
		return
	}
	inst.queued = true
	e.queue = append(e.queue, inst)
}

// pump advances queued instances until the engine is quiescent, then
// flushes snapshots of everything that changed. It returns the first
// execution error encountered; later queue entries are still
// processed, since each belongs to an independent instance. It must be
// called with the engine lock held.
func (e *Engine) pump(ctx context.Context) error {
	var ferr error

	for len(e.queue) > 0 {
		inst := e.queue[0]
		e.queue = e.queue[1:]
		inst.queued = false

		if inst.stepping {
			// Another pump owns this instance and will pick up any
			// tokens made ready here before it lets go.
			continue
		}

		if err := e.step(ctx, inst); err != nil && ferr == nil {
			ferr = err
		}
	}

	e.flush(ctx)

	return ferr
}

// step executes the instance's tokens until they are all parked or the
// instance finishes.
func (e *Engine) step(ctx context.Context, inst *Instance) error {
	inst.stepping = true
	defer func() { inst.stepping = false }()

	e.dirty[inst] = struct{}{}

	for {
		if inst.status == StatusEnded || inst.status == StatusTerminated {
			return nil
		}

		var t *token
		for _, c := range inst.tokens {
			if !c.waiting || c.ready {
				t = c
				break
			}
		}
		if t == nil {
			if len(inst.tokens) > 0 {
				inst.status = StatusWaiting
			}
			return nil
		}

		if err := e.executeNode(ctx, inst, t); err != nil {
			return err
		}
	}
}

// executeNode runs a single node for the given token. A parked token
// whose event has arrived executes the node's completion; otherwise
// the node either runs immediately or parks the token.
func (e *Engine) executeNode(ctx context.Context, inst *Instance, t *token) error {
	n, ok := inst.definition.Node(t.node)
	if !ok {
		return e.terminate(inst, fmt.Errorf(
			"token of instance %s is at unknown node %q",
			inst.id,
			t.node,
		))
	}

	arrived := t.ready
	t.ready = false
	t.waiting = false

	switch n.Kind {
	case process.Start, process.MessageStart, process.SignalStart, process.CatchError:
		e.visit(inst, n.ID)
		return e.moveOn(inst, t, n)

	case process.Task:
		if n.Async && !arrived {
			return e.park(inst, t, n)
		}
		if n.Handler != "" {
			if err := e.invoke(ctx, inst, n); err != nil {
				return err
			}
			if inst.status == StatusEnded || inst.status == StatusTerminated {
				return nil
			}
			if !e.tokenAlive(inst, t) {
				// A raised error repositioned the instance.
				return nil
			}
		}
		e.visit(inst, n.ID)
		return e.moveOn(inst, t, n)

	case process.UserTask:
		if !arrived {
			return e.park(inst, t, n)
		}
		e.visit(inst, n.ID)
		return e.moveOn(inst, t, n)

	case process.Timer:
		if !arrived {
			return e.park(inst, t, n)
		}
		e.visit(inst, n.ID)
		return e.moveOn(inst, t, n)

	case process.MessageCatch:
		if !arrived {
			return e.park(inst, t, n)
		}
		e.visit(inst, n.ID)
		return e.moveOn(inst, t, n)

	case process.EventGateway:
		// The token parks at the gateway; message delivery repositions
		// it onto the winning branch.
		return e.park(inst, t, n)

	case process.MessageThrow:
		if n.Async && !arrived {
			return e.park(inst, t, n)
		}
		if err := e.publish(
			n.Message,
			inst.businessKey,
			inst.correlationID,
			inst.vars.Pick(n.Payload...),
		); err != nil {
			return e.terminate(inst, fmt.Errorf(
				"node %q of instance %s: %w",
				n.ID,
				inst.id,
				err,
			))
		}
		e.visit(inst, n.ID)
		return e.moveOn(inst, t, n)

	case process.SignalThrow:
		if err := e.broadcast(
			n.Signal,
			inst.businessKey,
			inst.correlationID,
			inst.vars.Pick(n.Payload...),
		); err != nil {
			return e.terminate(inst, err)
		}
		e.visit(inst, n.ID)
		return e.moveOn(inst, t, n)

	case process.ExclusiveGateway:
		e.visit(inst, n.ID)
		for _, edge := range inst.definition.Outgoing(n.ID) {
			if edge.Guard == nil || edge.Guard(inst.vars) {
				t.node = edge.To
				return nil
			}
		}
		return e.terminate(inst, fmt.Errorf(
			"%w: gateway %q of %q",
			ErrNoMatchingGateway,
			n.ID,
			inst.definition.Key,
		))

	case process.ParallelGateway:
		return e.executeParallel(inst, t, n)

	case process.CallActivity:
		if !arrived {
			return e.spawnChild(inst, t, n)
		}
		e.visit(inst, n.ID)
		return e.moveOn(inst, t, n)

	case process.ThrowError:
		e.visit(inst, n.ID)
		return e.raise(inst, process.NewError(
			n.Error,
			"raised at node %q of %q",
			n.ID,
			inst.definition.Key,
		))

	case process.End:
		e.visit(inst, n.ID)
		inst.removeToken(t)
		if len(inst.tokens) == 0 {
			return e.complete(inst)
		}
		return nil

	case process.ErrorEnd:
		e.visit(inst, n.ID)
		derr := process.NewError(
			n.Error,
			"raised at node %q of %q",
			n.ID,
			inst.definition.Key,
		)
		// A rethrow keeps the message of the error being compensated.
		if inst.caught != nil && inst.caught.Code == n.Error {
			derr = *inst.caught
		}
		return e.fail(inst, derr)

	default:
		return e.terminate(inst, fmt.Errorf(
			"node %q of %q has unknown kind",
			n.ID,
			inst.definition.Key,
		))
	}
}

// park suspends the token at a wait state and registers whatever
// external trigger resumes it.
func (e *Engine) park(inst *Instance, t *token, n process.Node) error {
	t.waiting = true

	switch n.Kind {
	case process.Task, process.MessageThrow:
		// An asynchronous continuation: due immediately.
		e.sched.Schedule(timer.Job{
			InstanceID: inst.id,
			NodeID:     n.ID,
		})

	case process.Timer:
		e.sched.Schedule(timer.Job{
			InstanceID: inst.id,
			NodeID:     n.ID,
			At:         time.Now().Add(n.Delay),
		})

	case process.MessageCatch:
		e.bus.Register(correlation.Waiter{
			Message:       n.Message,
			BusinessKey:   inst.businessKey,
			CorrelationID: inst.correlationID,
			InstanceID:    inst.id,
			NodeID:        n.ID,
		})

	case process.EventGateway:
		for _, edge := range inst.definition.Outgoing(n.ID) {
			c, _ := inst.definition.Node(edge.To)
			e.bus.Register(correlation.Waiter{
				Message:       c.Message,
				BusinessKey:   inst.businessKey,
				CorrelationID: inst.correlationID,
				InstanceID:    inst.id,
				NodeID:        c.ID,
			})
		}
	}

	return nil
}

// invoke runs the task node's handler and merges its output variables.
func (e *Engine) invoke(ctx context.Context, inst *Instance, n process.Node) error {
	h, ok := e.handlers.Get(n.Handler)
	if !ok {
		return e.terminate(inst, fmt.Errorf(
			"node %q of %q names unregistered handler %q",
			n.ID,
			inst.definition.Key,
			n.Handler,
		))
	}

	// The handler runs outside the engine lock; the instance's stepping
	// flag keeps other pumps off its tokens in the meantime.
	vars := inst.vars.Clone()
	e.m.Unlock()
	out, err := h(ctx, vars)
	e.m.Lock()

	if inst.status == StatusEnded || inst.status == StatusTerminated {
		return nil
	}

	if err != nil {
		if derr, ok := process.AsError(err); ok {
			logging.Log(
				e.logger,
				"instance %s of %q raised %s at node %q",
				inst.id,
				inst.definition.Key,
				derr.Code,
				n.ID,
			)
			return e.raise(inst, derr)
		}
		return e.terminate(inst, fmt.Errorf(
			"handler %q at node %q of instance %s: %w",
			n.Handler,
			n.ID,
			inst.id,
			err,
		))
	}

	inst.vars.Merge(out)
	return nil
}

// executeParallel forks the token across every outgoing edge, joining
// first if the gateway has multiple incoming edges.
func (e *Engine) executeParallel(inst *Instance, t *token, n process.Node) error {
	if in := inst.definition.Incoming(n.ID); len(in) > 1 {
		arrived := 1
		for _, c := range inst.tokens {
			if c != t && c.node == n.ID && c.waiting {
				arrived++
			}
		}
		if arrived < len(in) {
			t.waiting = true
			return nil
		}
		for _, c := range inst.tokens {
			if c != t && c.node == n.ID && c.waiting {
				inst.removeToken(c)
			}
		}
	}

	e.visit(inst, n.ID)

	out := inst.definition.Outgoing(n.ID)
	t.node = out[0].To
	for _, edge := range out[1:] {
		inst.tokens = append(inst.tokens, &token{node: edge.To})
	}

	return nil
}

// spawnChild starts the call activity's child instance and parks the
// token until the child finishes.
func (e *Engine) spawnChild(inst *Instance, t *token, n process.Node) error {
	t.waiting = true

	businessKey := inst.businessKey
	if n.BusinessKey != "" {
		if bk := inst.vars.String(n.BusinessKey); bk != "" {
			businessKey = bk
		}
	}

	_, err := e.spawn(
		n.Definition,
		businessKey,
		inst.correlationID,
		inst.vars.Pick(n.Inherit...),
		inst.id,
		n.ID,
	)
	if err != nil {
		return e.terminate(inst, fmt.Errorf(
			"call activity %q of instance %s: %w",
			n.ID,
			inst.id,
			err,
		))
	}

	return nil
}

// complete finishes an instance whose last token reached an end event,
// and resumes the parent's call activity if there is one.
func (e *Engine) complete(inst *Instance) error {
	inst.status = StatusEnded
	e.cleanup(inst)

	logging.Log(
		e.logger,
		"instance %s of %q ended (business key %q)",
		inst.id,
		inst.definition.Key,
		inst.businessKey,
	)

	if inst.parentID == "" {
		return nil
	}

	parent, ok := e.instances[inst.parentID]
	if !ok {
		return nil
	}

	t := parent.tokenAt(inst.parentNode)
	if t == nil {
		return nil
	}

	parent.vars.Merge(inst.vars)
	t.ready = true
	e.enqueue(parent)

	return nil
}

// raise routes a domain error raised within the instance: its own
// catches are consulted first, interrupting every live token; an
// uncaught error fails the instance and propagates to the parent.
func (e *Engine) raise(inst *Instance, derr process.Error) error {
	if c, ok := inst.definition.Catch(derr.Code); ok {
		inst.caught = &derr
		inst.tokens = []*token{{node: c.To}}
		e.cleanup(inst)
		e.enqueue(inst)
		return nil
	}

	return e.fail(inst, derr)
}

// fail ends the instance with a domain error and raises it at the
// parent's call-activity boundary. At the root of the tree the error
// is unhandled: the instance is terminated and the driving caller gets
// the error.
func (e *Engine) fail(inst *Instance, derr process.Error) error {
	inst.failure = &derr
	inst.tokens = nil
	e.cleanup(inst)
	e.dirty[inst] = struct{}{}

	if inst.parentID == "" {
		inst.status = StatusTerminated
		logging.Log(
			e.logger,
			"instance %s of %q terminated: %s",
			inst.id,
			inst.definition.Key,
			derr,
		)
		return fmt.Errorf("%w: %s", ErrUnhandledDomainError, derr)
	}

	inst.status = StatusEnded
	logging.Log(
		e.logger,
		"instance %s of %q ended with %s",
		inst.id,
		inst.definition.Key,
		derr.Code,
	)

	parent, ok := e.instances[inst.parentID]
	if !ok {
		return nil
	}

	// The call-activity token is consumed without completing its node.
	if t := parent.tokenAt(inst.parentNode); t != nil {
		parent.removeToken(t)
	}
	e.dirty[parent] = struct{}{}

	return e.raise(parent, derr)
}

// terminate stops the instance after a fatal execution error.
func (e *Engine) terminate(inst *Instance, err error) error {
	inst.status = StatusTerminated
	inst.tokens = nil
	e.cleanup(inst)
	e.dirty[inst] = struct{}{}

	logging.Log(
		e.logger,
		"instance %s of %q terminated: %s",
		inst.id,
		inst.definition.Key,
		err,
	)

	return err
}

// publish correlates a message to the single waiting instance, or
// starts the definition subscribed to it.
func (e *Engine) publish(message, businessKey, correlationID string, vars process.Variables) error {
	w, err := e.bus.Resolve(message, businessKey, correlationID)
	if err == nil {
		if inst, ok := e.instances[w.InstanceID]; ok && e.suspended[inst.definition.Key] {
			// The subscription survives the refusal, so the message can
			// be correlated again once the definition is resumed.
			e.bus.Register(w)
			return fmt.Errorf("%w: %q", ErrDefinitionSuspended, inst.definition.Key)
		}
		return e.deliver(w, vars)
	}

	if errors.Is(err, correlation.ErrAmbiguous) {
		return fmt.Errorf(
			"%w: %q for business key %q",
			ErrAmbiguousCorrelation,
			message,
			businessKey,
		)
	}

	key, ok := e.registry.MessageStart(message)
	if !ok {
		return fmt.Errorf(
			"%w: %q for business key %q",
			ErrNoMatchingCorrelation,
			message,
			businessKey,
		)
	}
	if e.suspended[key] {
		return fmt.Errorf("%w: %q", ErrDefinitionSuspended, key)
	}

	_, err = e.spawn(key, businessKey, correlationID, vars.Clone(), "", "")
	return err
}

// deliver hands a resolved message to the waiting token. The waiter's
// node is either the message catch the token parked at, or a branch of
// the event gateway it parked at; winning an event gateway cancels the
// sibling subscriptions.
func (e *Engine) deliver(w correlation.Waiter, vars process.Variables) error {
	inst, ok := e.instances[w.InstanceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, w.InstanceID)
	}

	if t := inst.tokenAt(w.NodeID); t != nil {
		inst.vars.Merge(vars)
		t.ready = true
		e.enqueue(inst)
		return nil
	}

	for _, t := range inst.tokens {
		if !t.waiting || t.ready {
			continue
		}
		g, _ := inst.definition.Node(t.node)
		if g.Kind != process.EventGateway {
			continue
		}
		for _, edge := range inst.definition.Outgoing(g.ID) {
			if edge.To != w.NodeID {
				continue
			}
			for _, other := range inst.definition.Outgoing(g.ID) {
				if other.To != w.NodeID {
					e.bus.CancelNode(inst.id, other.To)
				}
			}
			e.visit(inst, g.ID)
			inst.vars.Merge(vars)
			t.node = w.NodeID
			t.waiting = false
			t.ready = true
			e.enqueue(inst)
			return nil
		}
	}

	return fmt.Errorf(
		"%w: %q for instance %s",
		ErrNoMatchingCorrelation,
		w.Message,
		w.InstanceID,
	)
}

// broadcast starts an instance of every definition subscribed to the
// signal. Suspended definitions are skipped.
func (e *Engine) broadcast(signal, businessKey, correlationID string, vars process.Variables) error {
	for _, key := range e.registry.SignalStarts(signal) {
		if e.suspended[key] {
			continue
		}
		if _, err := e.spawn(key, businessKey, correlationID, vars.Clone(), "", ""); err != nil {
			return err
		}
	}
	return nil
}

// cleanup drops the instance's pending subscriptions and jobs.
func (e *Engine) cleanup(inst *Instance) {
	e.bus.CancelInstance(inst.id)
	e.sched.CancelInstance(inst.id)
}

// visit records the execution of a node.
func (e *Engine) visit(inst *Instance, nodeID string) {
	inst.visited = append(inst.visited, nodeID)
}

// moveOn advances the token along the node's single outgoing edge.
func (e *Engine) moveOn(inst *Instance, t *token, n process.Node) error {
	out := inst.definition.Outgoing(n.ID)
	t.node = out[0].To
	return nil
}

// tokenAlive reports whether the token still belongs to the instance.
// Raising a caught error replaces the token set wholesale.
func (e *Engine) tokenAlive(inst *Instance, t *token) bool {
	for _, c := range inst.tokens {
		if c == t {
			return true
		}
	}
	return false
}

// flush writes snapshots of every instance that changed. A failed
// write is logged and does not fail the triggering operation; the
// store is an inspection journal, not the source of truth. It must be
// called with the engine lock held.
func (e *Engine) flush(ctx context.Context) {
	recs := make([]persistence.InstanceRecord, 0, len(e.dirty))
	for inst := range e.dirty {
		delete(e.dirty, inst)
		recs = append(recs, e.snapshot(inst))
	}

	// Snapshots are taken under the lock; writing them out is not.
	e.m.Unlock()
	defer e.m.Lock()

	for _, rec := range recs {
		if err := e.store.Save(ctx, rec); err != nil {
			logging.Log(
				e.logger,
				"cannot save snapshot of instance %s: %s",
				rec.InstanceID,
				err,
			)
		}
	}
}

// snapshot captures the instance's persistable state.
func (e *Engine) snapshot(inst *Instance) persistence.InstanceRecord {
	var waiting []string
	for _, t := range inst.tokens {
		if t.waiting && !t.ready {
			waiting = append(waiting, t.node)
		}
	}

	return persistence.InstanceRecord{
		InstanceID:    inst.id,
		DefinitionKey: inst.definition.Key,
		BusinessKey:   inst.businessKey,
		CorrelationID: inst.correlationID,
		Status:        inst.status.String(),
		WaitingAt:     waiting,
		Visited:       append([]string(nil), inst.visited...),
		Variables:     inst.vars.Clone(),
		SavedAt:       time.Now(),
	}
}
