package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("folio")

// BoltStore is a Store backed by a single bbolt file.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the database at path.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(ctx context.Context, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var raw []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketName).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		// bbolt memory is only valid inside the transaction.
		raw = append([]byte(nil), data...)
		return nil
	}); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding %q: %w", key, err)
	}
	return nil
}

func (s *BoltStore) Put(ctx context.Context, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), data)
	})
}

func (s *BoltStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
