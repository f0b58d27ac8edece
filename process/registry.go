package process

import (
	"fmt"
	"sort"
)

// Registry is the definition store. It validates definitions on
// registration and indexes their message-start and signal-start
// subscriptions.
type Registry struct {
	defs          map[string]*Definition
	messageStarts map[string]string
	signalStarts  map[string][]string
}

// NewRegistry validates and indexes the given definitions.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{
		defs:          map[string]*Definition{},
		messageStarts: map[string]string{},
		signalStarts:  map[string][]string{},
	}

	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, ok := r.defs[d.Key]; ok {
			return nil, fmt.Errorf("duplicate process definition %q", d.Key)
		}
		r.defs[d.Key] = d

		switch s := d.StartNode(); s.Kind {
		case MessageStart:
			if prev, ok := r.messageStarts[s.Message]; ok {
				return nil, fmt.Errorf("message %q starts both %q and %q", s.Message, prev, d.Key)
			}
			r.messageStarts[s.Message] = d.Key
		case SignalStart:
			r.signalStarts[s.Signal] = append(r.signalStarts[s.Signal], d.Key)
		}
	}

	return r, nil
}

// Definition returns the definition registered under key.
func (r *Registry) Definition(key string) (*Definition, bool) {
	d, ok := r.defs[key]
	return d, ok
}

// Keys returns the registered definition keys, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.defs))
	for k := range r.defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MessageStart returns the key of the definition started by the given
// message, if any.
func (r *Registry) MessageStart(message string) (string, bool) {
	k, ok := r.messageStarts[message]
	return k, ok
}

// SignalStarts returns the keys of the definitions started by the given
// signal.
func (r *Registry) SignalStarts(signal string) []string {
	return r.signalStarts[signal]
}
