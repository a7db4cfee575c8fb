package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const fetchBucket = "fetches"

var errBucketMissing = errors.New("fetch bucket missing")

// fetchRecord is the value stored per key.
type fetchRecord struct {
	Status    int   `json:"status"`
	FetchedAt int64 `json:"fetched_at"`
	ExpiresAt int64 `json:"expires_at"`
}

func (r fetchRecord) live(now time.Time) bool {
	return r.ExpiresAt > now.Unix()
}

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	fetchTTL        time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(fetchBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		fetchTTL:        opts.FetchTTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// SeenFetch reports whether key was marked and has not expired yet.
// Expired or unreadable records are dropped on the way.
func (b *boltStore) SeenFetch(key string) (bool, error) {
	if b == nil || b.db == nil {
		return false, nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return false, err
	}

	var seen bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(fetchBucket))
		if bucket == nil {
			return errBucketMissing
		}

		value := bucket.Get([]byte(key))
		if value == nil {
			return nil
		}

		rec, ok := decodeRecord(value)
		if !ok || !rec.live(now) {
			return bucket.Delete([]byte(key))
		}
		seen = true
		return nil
	})
	return seen, err
}

// MarkFetch records a fetch of key that answered with status.
func (b *boltStore) MarkFetch(key string, status int) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	value, err := json.Marshal(fetchRecord{
		Status:    status,
		FetchedAt: now.Unix(),
		ExpiresAt: now.Add(b.fetchTTL).Unix(),
	})
	if err != nil {
		return fmt.Errorf("encode fetch record: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(fetchBucket))
		if bucket == nil {
			return errBucketMissing
		}
		return bucket.Put([]byte(key), value)
	})
}

// maybeCleanupExpired sweeps expired records at most once per cleanup interval.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(fetchBucket))
		if bucket == nil {
			return errBucketMissing
		}

		// collect first; deleting through the cursor skips the following key
		var expired [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			if rec, ok := decodeRecord(v); !ok || !rec.live(now) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func decodeRecord(value []byte) (fetchRecord, bool) {
	var rec fetchRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return fetchRecord{}, false
	}
	if rec.ExpiresAt <= 0 {
		return fetchRecord{}, false
	}
	return rec, true
}

// count returns the number of stored records.
func (b *boltStore) count() (int, error) {
	n := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(fetchBucket))
		if bucket == nil {
			return errBucketMissing
		}
		n = bucket.Stats().KeyN
		return nil
	})
	return n, err
}
