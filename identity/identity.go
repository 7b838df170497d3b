// Package identity persists the local party's id and bearer token. The
// connection manager reads it once at channel-open time.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	bucketName = []byte("identity")
	currentKey = []byte("current")

	// ErrNotFound means no identity has been saved yet.
	ErrNotFound = errors.New("identity: not found")
)

// Identity is the locally persisted login.
type Identity struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// Store keeps the identity in a single-bucket bbolt database.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the identity database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("identity: open %s: %w", path, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("identity: create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Load reads the persisted identity.
func (s *Store) Load() (Identity, error) {
	var id Identity
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketName).Get(currentKey)
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &id)
	})
	return id, err
}

// Save overwrites the persisted identity.
func (s *Store) Save(id Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(currentKey, data)
	})
}

// Clear removes the persisted identity (logout).
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete(currentKey)
	})
}
