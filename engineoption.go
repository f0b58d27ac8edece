package depositflow

import (
	"fmt"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/meridianbank/depositflow/handler"
	"github.com/meridianbank/depositflow/persistence"
	"github.com/meridianbank/depositflow/persistence/memory"
	"github.com/meridianbank/depositflow/process"
)

var (
	// DefaultCorrelationVariable is the default name of the instance
	// variable that carries the correlation ID.
	//
	// It is overridden by the WithCorrelationVariable() option.
	DefaultCorrelationVariable = "correlationId"

	// DefaultLogger is the default target for log messages produced by
	// the engine.
	//
	// It is overridden by the WithLogger() option.
	DefaultLogger = logging.DefaultLogger
)

// EngineOption configures the behavior of an engine.
type EngineOption func(*engineOptions)

// WithDefinitions returns an engine option that registers additional
// process definitions with the engine.
//
// There must always be at least one definition. Definitions are
// validated when the engine is constructed; an invalid definition is a
// programming error and causes a panic.
func WithDefinitions(defs ...*process.Definition) EngineOption {
	return func(opts *engineOptions) {
		opts.Definitions = append(opts.Definitions, defs...)
	}
}

// WithHandlers returns an engine option that sets the registry of task
// handlers available to the definitions.
//
// If this option is omitted an empty registry is used, which only
// suits definitions whose tasks are all pass-through.
func WithHandlers(r *handler.Registry) EngineOption {
	return func(opts *engineOptions) {
		opts.Handlers = r
	}
}

// WithInstanceStore returns an engine option that sets the store that
// instance snapshots are written to.
//
// If this option is omitted or s is nil an in-memory store is used.
func WithInstanceStore(s persistence.Store) EngineOption {
	return func(opts *engineOptions) {
		opts.InstanceStore = s
	}
}

// WithCorrelationVariable returns an engine option that sets the name
// of the instance variable carrying the correlation ID.
//
// If this option is omitted DefaultCorrelationVariable is used.
func WithCorrelationVariable(name string) EngineOption {
	if name == "" {
		panic("correlation variable name must not be empty")
	}

	return func(opts *engineOptions) {
		opts.CorrelationVariable = name
	}
}

// WithLogger returns an engine option that sets the target for log
// messages produced by the engine.
//
// If this option is omitted or l is nil DefaultLogger is used.
func WithLogger(l logging.Logger) EngineOption {
	return func(opts *engineOptions) {
		opts.Logger = l
	}
}

// engineOptions is a container for a fully-resolved set of engine
// options.
type engineOptions struct {
	Definitions         []*process.Definition
	Handlers            *handler.Registry
	InstanceStore       persistence.Store
	CorrelationVariable string
	Logger              logging.Logger

	registry *process.Registry
}

// resolveEngineOptions returns a fully-populated set of engine options
// built from the given set of option functions.
func resolveEngineOptions(options ...EngineOption) *engineOptions {
	opts := &engineOptions{}

	for _, o := range options {
		o(opts)
	}

	if len(opts.Definitions) == 0 {
		panic("no process definitions configured, see depositflow.WithDefinitions()")
	}

	r, err := process.NewRegistry(opts.Definitions...)
	if err != nil {
		panic(err)
	}
	opts.registry = r

	if opts.Handlers == nil {
		opts.Handlers = handler.NewRegistry()
	}

	verifyHandlerBindings(opts.Definitions, opts.Handlers)

	if opts.InstanceStore == nil {
		opts.InstanceStore = memory.NewStore()
	}

	if opts.CorrelationVariable == "" {
		opts.CorrelationVariable = DefaultCorrelationVariable
	}

	if opts.Logger == nil {
		opts.Logger = DefaultLogger
	}

	return opts
}

// verifyHandlerBindings panics if any task node names a handler that is
// not registered. Binding mistakes must surface at startup, not when
// the node is first reached.
func verifyHandlerBindings(defs []*process.Definition, r *handler.Registry) {
	for _, d := range defs {
		for _, n := range d.Nodes {
			if n.Kind != process.Task || n.Handler == "" {
				continue
			}
			if _, ok := r.Get(n.Handler); !ok {
				panic(fmt.Sprintf(
					"node %q of %q names unregistered handler %q",
					n.ID,
					d.Key,
					n.Handler,
				))
			}
		}
	}
}
