package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStore keeps entries in an embedded bbolt database, one bucket per
// namespace, keyed by path.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the database file.
func OpenBoltStore(file string) (*BoltStore, error) {
	db, err := bolt.Open(file, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Load(_ context.Context, namespace, name string) (Entry, error) {
	const op = "repo.BoltStore.Load"

	var e Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return ErrNotFound
		}
		raw := b.Get([]byte(name))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &e)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

func (s *BoltStore) Save(_ context.Context, namespace string, e Entry) error {
	const op = "repo.BoltStore.Save"

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		return b.Put([]byte(e.Path), raw)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *BoltStore) Children(_ context.Context, namespace, dir string) ([]string, error) {
	const op = "repo.BoltStore.Children"

	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}

	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			rest := string(k[len(prefix):])
			if rest == "" || strings.Contains(rest, "/") {
				continue
			}
			names = append(names, rest)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return names, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
