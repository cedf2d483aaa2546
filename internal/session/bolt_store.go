package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

var sessionsBucket = []byte("sessions")

// BoltStore persists sessions in a single BoltDB file, one key per user.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func (s *BoltStore) Load(userID int64) (*State, bool) {
	var st *State
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		if b == nil {
			return nil
		}
		v := b.Get(boltKey(userID))
		if len(v) == 0 {
			return nil
		}
		var decoded State
		if err := json.Unmarshal(v, &decoded); err != nil {
			// Malformed entry, treat as absent
			return nil
		}
		st = &decoded
		return nil
	})
	if err != nil || st == nil {
		return nil, false
	}
	return st, true
}

func (s *BoltStore) Save(userID int64, state *State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put(boltKey(userID), payload)
	})
	if err != nil {
		return fmt.Errorf("put state: %w", err)
	}
	return nil
}

func (s *BoltStore) Purge(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	n := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		c := b.Cursor()
		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var st State
			if err := json.Unmarshal(v, &st); err != nil {
				// Drop entries we can no longer read
				stale = append(stale, append([]byte{}, k...))
				continue
			}
			if st.UpdatedAt.Before(cutoff) {
				stale = append(stale, append([]byte{}, k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return n, nil
}

func boltKey(userID int64) []byte { return []byte(strconv.FormatInt(userID, 10)) }
