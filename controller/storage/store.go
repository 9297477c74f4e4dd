package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Store is the persistence surface the doser subsystem works against.
// Values are JSON blobs keyed by id within a named bucket.
type Store interface {
	CreateBucket(bucket string) error
	Get(bucket, id string, v interface{}) error
	Insert(bucket, id string, v interface{}) error
	Update(bucket, id string, v interface{}) error
	Create(bucket string, fn func(id string) interface{}) error
	Delete(bucket, id string) error
	List(bucket string, fn func(id string, v []byte) error) error
	Close() error
}

type boltStore struct {
	db *bbolt.DB
}

// Open opens (or creates) the BoltDB file backing the store.
func Open(path string) (Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) CreateBucket(bucket string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
}

func (s *boltStore) Get(bucket, id string, v interface{}) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("record %s not found in %s", id, bucket)
		}
		return json.Unmarshal(data, v)
	})
}

func (s *boltStore) Insert(bucket, id string, v interface{}) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
}

func (s *boltStore) Update(bucket, id string, v interface{}) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("record %s not found in %s", id, bucket)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
}

func (s *boltStore) Create(bucket string, fn func(id string) interface{}) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id := fmt.Sprintf("%012d", seq)
		data, err := json.Marshal(fn(id))
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
}

func (s *boltStore) Delete(bucket, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}
		return b.Delete([]byte(id))
	})
}

func (s *boltStore) List(bucket string, fn func(id string, v []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}
		return b.ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	})
}

func (s *boltStore) Close() error {
	return s.db.Close()
}
