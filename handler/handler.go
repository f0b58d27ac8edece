// Package handler provides the task-handler registry: the explicit
// mapping from handler names to the business behavior invoked at task
// nodes. The registry is constructed once at startup and passed by
// reference into the engine.
package handler

import (
	"context"
	"fmt"
	"sort"

	"github.com/meridianbank/depositflow/process"
)

// Handler executes the behavior bound to a task node. It receives a
// snapshot of the instance's variables and returns the variables to merge
// back. Raising a process.Error routes the instance to a compensation
// path; any other error is fatal to the instance.
type Handler func(ctx context.Context, vars process.Variables) (process.Variables, error)

// Registry maps handler names to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: map[string]Handler{},
	}
}

// Register binds a handler to a name. It panics on a duplicate name, as
// that is always a wiring mistake.
func (r *Registry) Register(name string, h Handler) {
	if name == "" {
		panic("handler name must not be empty")
	}
	if h == nil {
		panic(fmt.Sprintf("handler %q is nil", name))
	}
	if _, ok := r.handlers[name]; ok {
		panic(fmt.Sprintf("handler %q is already registered", name))
	}
	r.handlers[name] = h
}

// Get returns the handler registered under name.
func (r *Registry) Get(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered handler names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
