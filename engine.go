// Package depositflow is an in-process orchestration engine for
// long-running, multi-step sagas modeled as process definitions. It
// executes tokens through process graphs, suspends them at user tasks,
// timers and message catches, correlates asynchronous messages to
// waiting instances, and routes domain errors to compensation paths
// across parent/child boundaries.
package depositflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/meridianbank/depositflow/correlation"
	"github.com/meridianbank/depositflow/handler"
	"github.com/meridianbank/depositflow/persistence"
	"github.com/meridianbank/depositflow/process"
	"github.com/meridianbank/depositflow/timer"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnknownDefinition is returned when an operation references a
	// definition key that is not registered.
	ErrUnknownDefinition = errors.New("unknown process definition")

	// ErrDefinitionSuspended is returned when an operation would start
	// or advance an instance of a suspended definition.
	ErrDefinitionSuspended = errors.New("process definition is suspended")

	// ErrInstanceNotFound is returned when an operation references an
	// instance the engine does not know.
	ErrInstanceNotFound = errors.New("process instance not found")

	// ErrTaskNotWaiting is returned when a completion references a node
	// with no waiting token.
	ErrTaskNotWaiting = errors.New("no task is waiting at the node")

	// ErrJobNotPending is returned when a job execution references a job
	// that is not scheduled, including jobs that have already fired.
	ErrJobNotPending = errors.New("no job is pending for the node")

	// ErrNoMatchingGateway is returned when no outgoing edge of an
	// exclusive gateway passes. The triggering instance is terminated.
	ErrNoMatchingGateway = errors.New("no gateway edge matches the instance variables")

	// ErrNoMatchingCorrelation is returned when a message matches no
	// waiting instance and starts no definition.
	ErrNoMatchingCorrelation = errors.New("message does not correlate to any instance")

	// ErrAmbiguousCorrelation is returned when a message matches more
	// than one waiting instance. Nothing is delivered.
	ErrAmbiguousCorrelation = errors.New("message correlates to more than one instance")

	// ErrUnhandledDomainError is returned to the driving caller when a
	// domain error reaches the root of an instance tree without being
	// caught. The root instance is terminated.
	ErrUnhandledDomainError = errors.New("unhandled domain error")
)

// Engine executes process instances.
type Engine struct {
	opts *engineOptions

	registry *process.Registry
	handlers *handler.Registry
	store    persistence.Store
	logger   logging.Logger

	bus   *correlation.Bus
	sched *timer.Scheduler

	// m guards the shared engine state. It is released around handler
	// invocations and snapshot writes; an instance being advanced is
	// claimed via its stepping flag, so exactly one pump owns its
	// tokens at a time.
	m         sync.Mutex
	instances map[string]*Instance
	order     []*Instance
	suspended map[string]bool
	queue     []*Instance
	dirty     map[*Instance]struct{}
}

// New returns an engine that executes the configured process
// definitions. It panics if the configuration is invalid, as this
// always indicates a problem that requires a code change to fix.
func New(options ...EngineOption) *Engine {
	opts := resolveEngineOptions(options...)

	sched := timer.NewScheduler()
	sched.Logger = opts.Logger

	return &Engine{
		opts:      opts,
		registry:  opts.registry,
		handlers:  opts.Handlers,
		store:     opts.InstanceStore,
		logger:    opts.Logger,
		bus:       correlation.NewBus(),
		sched:     sched,
		instances: map[string]*Instance{},
		suspended: map[string]bool{},
		dirty:     map[*Instance]struct{}{},
	}
}

// Run drives the engine's background work until ctx is canceled: timer
// jobs and asynchronous continuations fire without manual job
// execution. The engine's synchronous operations work whether or not
// Run is running.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.sched.Run(ctx, e.fireJob)
	})

	return g.Wait()
}

// fireJob is the scheduler's callback. The scheduler has already
// claimed the job, so it resumes the waiting token directly.
func (e *Engine) fireJob(ctx context.Context, j timer.Job) error {
	return e.resume(ctx, j.InstanceID, j.NodeID, nil)
}

// resume marks the waiting token ready and pumps the engine.
func (e *Engine) resume(ctx context.Context, instanceID, nodeID string, vars process.Variables) error {
	e.m.Lock()
	defer e.m.Unlock()

	inst, ok := e.instances[instanceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}

	if e.suspended[inst.definition.Key] {
		return fmt.Errorf("%w: %q", ErrDefinitionSuspended, inst.definition.Key)
	}

	t := inst.tokenAt(nodeID)
	if t == nil {
		return fmt.Errorf("%w: node %q of instance %s", ErrTaskNotWaiting, nodeID, instanceID)
	}

	inst.vars.Merge(vars)
	t.ready = true
	e.enqueue(inst)

	return e.pump(ctx)
}
