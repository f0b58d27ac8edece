// Package persistence defines the instance snapshot store. The engine
// writes a snapshot whenever an instance reaches a wait state or ends, so
// an operator can inspect saga state after the fact and a future engine
// generation can recover it.
package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrRecordNotFound is returned by Load when no snapshot exists for the
// requested instance.
var ErrRecordNotFound = errors.New("instance record not found")

// InstanceRecord is a snapshot of a process instance.
type InstanceRecord struct {
	InstanceID    string         `json:"instanceId"`
	DefinitionKey string         `json:"definitionKey"`
	BusinessKey   string         `json:"businessKey"`
	CorrelationID string         `json:"correlationId,omitempty"`
	Status        string         `json:"status"`
	WaitingAt     []string       `json:"waitingAt,omitempty"`
	Visited       []string       `json:"visited,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	SavedAt       time.Time      `json:"savedAt"`
}

// Store persists instance snapshots.
type Store interface {
	// Save writes a snapshot, replacing any previous one for the same
	// instance.
	Save(ctx context.Context, rec InstanceRecord) error

	// Load returns the snapshot for the given instance, or
	// ErrRecordNotFound.
	Load(ctx context.Context, instanceID string) (InstanceRecord, error)

	// List returns the snapshots for the given definition key, or all
	// snapshots when the key is empty.
	List(ctx context.Context, definitionKey string) ([]InstanceRecord, error)

	// Remove deletes the snapshot for the given instance. Removing a
	// missing snapshot is not an error.
	Remove(ctx context.Context, instanceID string) error
}
