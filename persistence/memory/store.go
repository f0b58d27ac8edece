// Package memory provides an in-memory snapshot store, suitable for
// tests and for running without durability.
package memory

import (
	"context"
	"sync"

	"github.com/meridianbank/depositflow/persistence"
)

// Store is an in-memory persistence.Store.
type Store struct {
	m       sync.RWMutex
	records map[string]persistence.InstanceRecord
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		records: map[string]persistence.InstanceRecord{},
	}
}

// Save writes a snapshot.
func (s *Store) Save(_ context.Context, rec persistence.InstanceRecord) error {
	s.m.Lock()
	defer s.m.Unlock()

	s.records[rec.InstanceID] = rec
	return nil
}

// Load returns the snapshot for the given instance.
func (s *Store) Load(_ context.Context, instanceID string) (persistence.InstanceRecord, error) {
	s.m.RLock()
	defer s.m.RUnlock()

	rec, ok := s.records[instanceID]
	if !ok {
		return persistence.InstanceRecord{}, persistence.ErrRecordNotFound
	}
	return rec, nil
}

// List returns the snapshots for the given definition key, or all
// snapshots when the key is empty.
func (s *Store) List(_ context.Context, definitionKey string) ([]persistence.InstanceRecord, error) {
	s.m.RLock()
	defer s.m.RUnlock()

	var recs []persistence.InstanceRecord
	for _, rec := range s.records {
		if definitionKey == "" || rec.DefinitionKey == definitionKey {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

// Remove deletes the snapshot for the given instance.
func (s *Store) Remove(_ context.Context, instanceID string) error {
	s.m.Lock()
	defer s.m.Unlock()

	delete(s.records, instanceID)
	return nil
}
