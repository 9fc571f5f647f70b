// Package apdb persistently stores saved access point profiles for the
// daemon. The lifecycle controller itself owns no on-disk state; this
// store only lets the daemon restore the last requested configuration
// after a restart.
package apdb

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

type DB struct {
	*bbolt.DB
}

// Open opens or creates the profile database inside dataDir.
func Open(dataDir string) (*DB, error) {
	db, err := bbolt.Open(filepath.Join(dataDir, "protond.db"), 0600, &bbolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, errors.Errorf("could not open database: %v", err)
	}

	return &DB{DB: db}, nil
}

func (db *DB) setJSON(bucket []byte, key []byte, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}

		return bucket.Put(key, payload)
	})
}

func (db *DB) getJSON(bucket []byte, key []byte, v interface{}) (bool, error) {
	found := false

	err := db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucket)
		if bucket == nil {
			return nil
		}

		payload := bucket.Get(key)
		if payload == nil || bytes.Equal(payload, []byte("null")) {
			return nil
		}

		err := json.Unmarshal(payload, v)
		if err != nil {
			return errors.Errorf("could not unmarshal data: %v", err)
		}

		found = true

		return nil
	})

	return found, err
}
