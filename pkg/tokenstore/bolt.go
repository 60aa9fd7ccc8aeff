package tokenstore

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketSession = []byte("session")

// BoltBackend stores the session in a single bbolt bucket.
type BoltBackend struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the bbolt file at path.
func OpenBolt(path string) (*BoltBackend, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSession)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucketSession, err)
	}

	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSession).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// bbolt values are only valid for the life of the tx.
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (b *BoltBackend) Put(_ context.Context, entries map[string][]byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSession)
		for k, v := range entries {
			if err := bucket.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BoltBackend) Delete(_ context.Context, keys ...string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSession)
		for _, k := range keys {
			if err := bucket.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BoltBackend) Close() error { return b.db.Close() }
