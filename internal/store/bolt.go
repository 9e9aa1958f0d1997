// Package store persists conversation records in a client-local key/value
// database, and exchanges them as standalone JSON documents.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parley-chat/parley/internal/models"
	bolt "go.etcd.io/bbolt"
)

var conversationsBucket = []byte("conversations")

// BoltDB stores conversations in a BoltDB file, keyed by conversation name.
// It is the client's local stand-in for a browser's key/value storage: no
// server round-trip, one file on disk.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens (or creates, with 0600 permissions) the database at the
// given path and ensures the conversations bucket exists.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(conversationsBucket)
		return err
	})

	return BoltDB{db: db}, err
}

// Save writes a conversation under its name, overwriting any previous record
// with that name. Media turns are stored with their text replaced by the
// placeholder note; attachment bytes never reach the database.
func (b BoltDB) Save(_ context.Context, conv models.Conversation) error {
	if conv.Name == "" {
		return fmt.Errorf("conversation name is required")
	}

	v, err := json.Marshal(conv.Sanitized())
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).Put([]byte(conv.Name), v)
	})
}

// Load retrieves the conversation stored under the given name.
func (b BoltDB) Load(_ context.Context, name string) (models.Conversation, error) {
	var conv models.Conversation
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(conversationsBucket).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("conversation %q not found", name)
		}
		if err := json.Unmarshal(v, &conv); err != nil {
			return fmt.Errorf("failed to unmarshal conversation: %w", err)
		}
		return nil
	})
	return conv, err
}

// List returns all stored conversations in key order.
func (b BoltDB) List(context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).ForEach(func(_, v []byte) error {
			var conv models.Conversation
			if err := json.Unmarshal(v, &conv); err != nil {
				return fmt.Errorf("failed to unmarshal conversation: %w", err)
			}
			convs = append(convs, conv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// Delete removes the conversation stored under the given name. Deleting an
// unknown name is not an error.
func (b BoltDB) Delete(_ context.Context, name string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).Delete([]byte(name))
	})
}

// Close releases the underlying database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}
