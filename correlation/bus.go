// Package correlation provides the message-correlation bus: it matches
// asynchronous messages, by message name and business key, to exactly one
// waiting process instance.
package correlation

import (
	"errors"
	"sync"
)

// ErrNoMatch is returned when no waiter matches a published message.
var ErrNoMatch = errors.New("no waiting instance matches the message")

// ErrAmbiguous is returned when more than one waiter matches a published
// message. Nothing is delivered in that case.
var ErrAmbiguous = errors.New("more than one waiting instance matches the message")

// Waiter is a pending subscription registered on behalf of a waiting
// process instance.
type Waiter struct {
	// Message is the message name the instance is waiting for.
	Message string

	// BusinessKey scopes the subscription to one saga family.
	BusinessKey string

	// CorrelationID optionally disambiguates concurrent instances that
	// share a business key. An empty value matches any correlation ID.
	CorrelationID string

	// InstanceID and NodeID locate the waiting token.
	InstanceID string
	NodeID     string
}

// Bus is an in-memory correlation index. All methods are safe for
// concurrent use.
type Bus struct {
	m       sync.Mutex
	waiters []Waiter
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Register adds a pending subscription.
func (b *Bus) Register(w Waiter) {
	b.m.Lock()
	defer b.m.Unlock()

	b.waiters = append(b.waiters, w)
}

// Resolve finds the single waiter matching the message and removes it,
// atomically with respect to other publishes for the same key. It returns
// ErrNoMatch or ErrAmbiguous without removing anything when the match is
// not unique.
func (b *Bus) Resolve(message, businessKey, correlationID string) (Waiter, error) {
	b.m.Lock()
	defer b.m.Unlock()

	idx := -1
	for i, w := range b.waiters {
		if !matches(w, message, businessKey, correlationID) {
			continue
		}
		if idx >= 0 {
			return Waiter{}, ErrAmbiguous
		}
		idx = i
	}

	if idx < 0 {
		return Waiter{}, ErrNoMatch
	}

	w := b.waiters[idx]
	b.waiters = append(b.waiters[:idx], b.waiters[idx+1:]...)

	return w, nil
}

// CancelNode removes the subscription registered for the given token, if
// any. It reports whether a subscription was removed.
func (b *Bus) CancelNode(instanceID, nodeID string) bool {
	b.m.Lock()
	defer b.m.Unlock()

	for i, w := range b.waiters {
		if w.InstanceID == instanceID && w.NodeID == nodeID {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// CancelInstance removes every subscription held by the given instance.
func (b *Bus) CancelInstance(instanceID string) {
	b.m.Lock()
	defer b.m.Unlock()

	kept := b.waiters[:0]
	for _, w := range b.waiters {
		if w.InstanceID != instanceID {
			kept = append(kept, w)
		}
	}
	b.waiters = kept
}

// Waiting returns a snapshot of the pending subscriptions.
func (b *Bus) Waiting() []Waiter {
	b.m.Lock()
	defer b.m.Unlock()

	return append([]Waiter(nil), b.waiters...)
}

func matches(w Waiter, message, businessKey, correlationID string) bool {
	if w.Message != message || w.BusinessKey != businessKey {
		return false
	}
	if w.CorrelationID == "" || correlationID == "" {
		return true
	}
	return w.CorrelationID == correlationID
}
