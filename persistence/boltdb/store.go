// Package boltdb provides a BoltDB-backed snapshot store.
package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dogmatiq/linger"
	"github.com/meridianbank/depositflow/persistence"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("instances")

// Store is a persistence.Store backed by a BoltDB file.
type Store struct {
	// File is the path of the BoltDB file. It is created if absent.
	File string

	// Mode is the file mode used when creating the file. 0600 is used
	// when zero.
	Mode os.FileMode

	// Options are passed to bbolt when the file is opened.
	Options *bbolt.Options

	db *bbolt.DB
}

// Open opens the underlying database. The context deadline, if any,
// bounds the wait for the file lock.
func (s *Store) Open(ctx context.Context) error {
	if s.db != nil {
		return fmt.Errorf("store is already open")
	}

	mode := s.Mode
	if mode == 0 {
		mode = 0600
	}

	opts := s.Options
	if timeout, ok := linger.FromContextDeadline(ctx); ok {
		if opts == nil {
			opts = &bbolt.Options{}
		}
		if opts.Timeout == 0 || timeout < opts.Timeout {
			opts.Timeout = timeout
		}
	}

	db, err := bbolt.Open(s.File, mode, opts)
	if err != nil {
		return err
	}

	s.db = db
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	return db.Close()
}

// Save writes a snapshot.
func (s *Store) Save(_ context.Context, rec persistence.InstanceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cannot marshal record for instance %s: %w", rec.InstanceID, err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.InstanceID), data)
	})
}

// Load returns the snapshot for the given instance.
func (s *Store) Load(_ context.Context, instanceID string) (persistence.InstanceRecord, error) {
	var rec persistence.InstanceRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return persistence.ErrRecordNotFound
		}
		data := b.Get([]byte(instanceID))
		if data == nil {
			return persistence.ErrRecordNotFound
		}
		return json.Unmarshal(data, &rec)
	})

	return rec, err
}

// List returns the snapshots for the given definition key, or all
// snapshots when the key is empty.
func (s *Store) List(_ context.Context, definitionKey string) ([]persistence.InstanceRecord, error) {
	var recs []persistence.InstanceRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, data []byte) error {
			var rec persistence.InstanceRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			if definitionKey == "" || rec.DefinitionKey == definitionKey {
				recs = append(recs, rec)
			}
			return nil
		})
	})

	return recs, err
}

// Remove deletes the snapshot for the given instance.
func (s *Store) Remove(_ context.Context, instanceID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(instanceID))
	})
}
