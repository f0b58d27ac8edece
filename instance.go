package depositflow

import (
	"github.com/meridianbank/depositflow/process"
	"github.com/meridianbank/depositflow/timer"
)

// Status enumerates the lifecycle states of a process instance.
type Status int

const (
	// StatusRunning means the instance has tokens ready to advance. It
	// is only observable while an operation is in flight.
	StatusRunning Status = iota + 1

	// StatusWaiting means every live token is parked at a wait state.
	StatusWaiting

	// StatusEnded means the instance ran to an end event. An instance
	// that ended at an error-end event additionally carries a failure.
	StatusEnded

	// StatusTerminated means the instance was stopped without reaching
	// an end event: an uncaught domain error at the root of the tree, a
	// fatal execution error, or an explicit Terminate call.
	StatusTerminated
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusWaiting:
		return "waiting"
	case StatusEnded:
		return "ended"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// TaskRef locates a waiting user task.
type TaskRef struct {
	InstanceID string
	NodeID     string
}

// Task is a snapshot of a waiting user task, as presented to external
// actors.
type Task struct {
	Ref           TaskRef
	Name          string
	DefinitionKey string
	BusinessKey   string
}

// token is a point of execution within an instance. An instance holds
// one token unless a parallel gateway has forked it.
type token struct {
	// node is the ID of the node the token is at.
	node string

	// waiting marks the token as parked at a wait state.
	waiting bool

	// ready marks a parked token whose external event has arrived. The
	// next step executes the node's completion.
	ready bool
}

// Instance is a live or finished execution of a process definition.
//
// The accessor methods are safe for concurrent use and may be called
// while the engine is running.
type Instance struct {
	engine *Engine

	id            string
	definition    *process.Definition
	businessKey   string
	correlationID string
	parentID      string
	parentNode    string

	status  Status
	tokens  []*token
	vars    process.Variables
	visited []string
	failure *process.Error
	caught  *process.Error
	queued  bool

	// stepping is set while a pump owns the instance's tokens, so no
	// other pump advances them concurrently.
	stepping bool

	// parkedJobs holds the jobs withdrawn from the scheduler while the
	// instance's definition is suspended.
	parkedJobs []timer.Job
}

// ID returns the unique identifier of the instance.
func (i *Instance) ID() string {
	return i.id
}

// DefinitionKey returns the key of the definition the instance executes.
func (i *Instance) DefinitionKey() string {
	return i.definition.Key
}

// BusinessKey returns the business key the instance was started with.
func (i *Instance) BusinessKey() string {
	i.engine.m.Lock()
	defer i.engine.m.Unlock()
	return i.businessKey
}

// CorrelationID returns the instance's correlation ID, which may be
// empty.
func (i *Instance) CorrelationID() string {
	i.engine.m.Lock()
	defer i.engine.m.Unlock()
	return i.correlationID
}

// Status returns the instance's lifecycle state.
func (i *Instance) Status() Status {
	i.engine.m.Lock()
	defer i.engine.m.Unlock()
	return i.status
}

// WaitingAt returns the IDs of the nodes with parked tokens.
func (i *Instance) WaitingAt() []string {
	i.engine.m.Lock()
	defer i.engine.m.Unlock()

	var ids []string
	for _, t := range i.tokens {
		if t.waiting && !t.ready {
			ids = append(ids, t.node)
		}
	}
	return ids
}

// Visited returns the IDs of the executed nodes, in execution order.
// Nodes inside loops appear once per execution.
func (i *Instance) Visited() []string {
	i.engine.m.Lock()
	defer i.engine.m.Unlock()
	return append([]string(nil), i.visited...)
}

// HasPassed reports whether every one of the given nodes has been
// executed.
func (i *Instance) HasPassed(nodeIDs ...string) bool {
	i.engine.m.Lock()
	defer i.engine.m.Unlock()

	for _, id := range nodeIDs {
		if !i.hasVisited(id) {
			return false
		}
	}
	return true
}

// Variable returns the named instance variable.
func (i *Instance) Variable(name string) (any, bool) {
	i.engine.m.Lock()
	defer i.engine.m.Unlock()

	v, ok := i.vars[name]
	return v, ok
}

// Variables returns a snapshot of the instance variables.
func (i *Instance) Variables() process.Variables {
	i.engine.m.Lock()
	defer i.engine.m.Unlock()
	return i.vars.Clone()
}

// Failure returns the domain error the instance ended with, if any.
func (i *Instance) Failure() *process.Error {
	i.engine.m.Lock()
	defer i.engine.m.Unlock()

	if i.failure == nil {
		return nil
	}
	f := *i.failure
	return &f
}

// hasVisited reports whether the node has been executed. It must be
// called with the engine lock held.
func (i *Instance) hasVisited(nodeID string) bool {
	for _, id := range i.visited {
		if id == nodeID {
			return true
		}
	}
	return false
}

// tokenAt returns the parked token at the given node, if any. It must
// be called with the engine lock held.
func (i *Instance) tokenAt(nodeID string) *token {
	for _, t := range i.tokens {
		if t.node == nodeID && t.waiting && !t.ready {
			return t
		}
	}
	return nil
}

// removeToken drops the given token. It must be called with the engine
// lock held.
func (i *Instance) removeToken(t *token) {
	for k, c := range i.tokens {
		if c == t {
			i.tokens = append(i.tokens[:k], i.tokens[k+1:]...)
			return
		}
	}
}
