package runindex

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/0xADE/ade-launchd/internal/app"
	"go.etcd.io/bbolt"
)

const (
	dbFile        = "launchd.db"
	usageBucket   = "usage"
	cacheBucket   = "cache"
	dbPermissions = 0600
)

// ErrClosed is returned by writes on a closed or unopened store
var ErrClosed = errors.New("run index is closed")

// RunIndex persists launch counts and the last discovered entry set in a
// bbolt database. Both live in separate buckets keyed by canonical id.
type RunIndex struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// cacheRecord is the cache bucket value; the canonical id is the key
type cacheRecord struct {
	Name string `json:"name"`
	Args string `json:"args,omitempty"`
	Icon int32  `json:"icon"`
	Kind string `json:"kind"`
}

// NewRunIndex creates or opens the database in the user cache directory.
func NewRunIndex() (*RunIndex, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return NewRunIndexWithCacheDir(cacheDir)
}

// NewRunIndexWithCacheDir creates or opens the database below cacheDir/ade.
func NewRunIndexWithCacheDir(cacheDir string) (*RunIndex, error) {
	// Create ade directory in cache if it doesn't exist
	adeCacheDir := filepath.Join(cacheDir, "ade")
	if err := os.MkdirAll(adeCacheDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(adeCacheDir, dbFile)

	// The timeout bounds the wait for another process holding the file lock
	db, err := bbolt.Open(dbPath, dbPermissions, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{usageBucket, cacheBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &RunIndex{db: db, logger: slog.Default()}, nil
}

// SetLogger sets the logger used to report degraded reads
func (ri *RunIndex) SetLogger(logger *slog.Logger) {
	if logger != nil {
		ri.logger = logger
	}
}

// Path returns the database file path
func (ri *RunIndex) Path() string {
	if ri == nil || ri.db == nil {
		return ""
	}
	return ri.db.Path()
}

// Increment increases the run count for id by one, inserting it with a
// count of one when absent. The read and write share one transaction.
func (ri *RunIndex) Increment(id string) error {
	if ri == nil || ri.db == nil {
		return ErrClosed
	}
	return ri.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(usageBucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", usageBucket)
		}

		var count uint64
		if val := b.Get([]byte(id)); len(val) == 8 {
			count = binary.BigEndian.Uint64(val)
		}
		count++

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, count)
		return b.Put([]byte(id), buf)
	})
}

// LoadAll returns every stored run count. Failures yield an empty map.
func (ri *RunIndex) LoadAll() map[string]uint64 {
	counts := make(map[string]uint64)
	if ri == nil || ri.db == nil {
		return counts
	}

	err := ri.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(usageBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if len(v) == 8 {
				counts[string(k)] = binary.BigEndian.Uint64(v)
			}
			return nil
		})
	})
	if err != nil {
		ri.logger.Warn("reading usage counts", "error", err)
		return make(map[string]uint64)
	}
	return counts
}

// GetFrequencies retrieves the run counts for ids; unknown ids map to 0.
func (ri *RunIndex) GetFrequencies(ids []string) map[string]uint64 {
	frequencies := make(map[string]uint64, len(ids))
	if ri == nil || ri.db == nil {
		return frequencies
	}

	err := ri.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(usageBucket))
		for _, id := range ids {
			frequencies[id] = 0
			if b == nil {
				continue
			}
			if val := b.Get([]byte(id)); len(val) == 8 {
				frequencies[id] = binary.BigEndian.Uint64(val)
			}
		}
		return nil
	})
	if err != nil {
		ri.logger.Warn("reading usage counts", "error", err)
	}
	return frequencies
}

// SaveCache replaces the cached entry set with entries. The old rows are
// dropped in the same transaction, so readers see either set in full.
func (ri *RunIndex) SaveCache(entries []app.Entry) error {
	if ri == nil || ri.db == nil {
		return ErrClosed
	}
	return ri.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(cacheBucket)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		b, err := tx.CreateBucket([]byte(cacheBucket))
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", cacheBucket, err)
		}

		for _, e := range entries {
			val, err := json.Marshal(cacheRecord{Name: e.Name, Args: e.Arguments, Icon: e.Icon, Kind: e.Kind.String()})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(e.ID), val); err != nil {
				return fmt.Errorf("failed to cache %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// LoadCache returns the cached entries with usage restored from the run
// counts. Settings shortcuts always come back with zero usage. Malformed
// rows are skipped and failures yield no entries.
func (ri *RunIndex) LoadCache() []app.Entry {
	if ri == nil || ri.db == nil {
		return nil
	}

	usage := ri.LoadAll()
	var entries []app.Entry
	err := ri.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(cacheBucket))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec cacheRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				ri.logger.Debug("skipping malformed cache row", "id", string(k), "error", err)
				return nil
			}

			id := string(k)
			if app.ParseKind(rec.Kind) == app.KindSettings {
				entries = append(entries, app.NewSettings(rec.Name, id, rec.Icon))
			} else {
				entries = append(entries, app.NewWithArgs(rec.Name, id, rec.Args, rec.Icon, usage[id]))
			}
			return nil
		})
	})
	if err != nil {
		ri.logger.Warn("reading entry cache", "error", err)
		return nil
	}
	return entries
}

// HasCache reports whether a cached entry set exists
func (ri *RunIndex) HasCache() bool {
	if ri == nil || ri.db == nil {
		return false
	}
	var found bool
	ri.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket([]byte(cacheBucket)); b != nil {
			k, _ := b.Cursor().First()
			found = k != nil
		}
		return nil
	})
	return found
}

// Close closes the database connection. Later writes return ErrClosed.
func (ri *RunIndex) Close() error {
	if ri == nil || ri.db == nil {
		return nil
	}
	err := ri.db.Close()
	ri.db = nil
	return err
}
