package storage

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket   = []byte("config")   // Version, timestamps, device id
	RecordsBucket  = []byte("records")  // Application records
	ImagesBucket   = []byte("images")   // Image cache entries
	AncestryBucket = []byte("ancestry") // Last synchronized snapshots
)

// Config keys
var (
	ConfigVersion    = []byte("version")
	ConfigCreated    = []byte("created")
	ConfigModified   = []byte("modified")
	ConfigDeviceID   = []byte("device_id")
	ConfigLastExport = []byte("last_export")
)

var ErrNotInitialized = errors.New("store not initialized")

// Changeset is a set of writes committed in a single transaction.
// A nil value in Records deletes the key.
type Changeset struct {
	Records   map[string]*string
	Images    map[string][]byte
	Ancestors map[string][]byte
}

// Storage provides BBolt-based storage for statevault
type Storage struct {
	db *bolt.DB
}

// Open opens or creates a statevault database
func Open(path string) (*Storage, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Storage) Path() string {
	return s.db.Path()
}

// Initialize creates the bucket structure for a new store
func (s *Storage) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, RecordsBucket, ImagesBucket, AncestryBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		if config.Get(ConfigVersion) != nil {
			return nil
		}
		if err := config.Put(ConfigVersion, []byte("1")); err != nil {
			return err
		}

		created, _ := time.Now().MarshalBinary()
		if err := config.Put(ConfigCreated, created); err != nil {
			return err
		}
		return config.Put(ConfigModified, created)
	})
}

// IsInitialized checks if the database has been initialized
func (s *Storage) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

// Get returns a record value and whether it exists
func (s *Storage) Get(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket(RecordsBucket)
		if records == nil {
			return ErrNotInitialized
		}
		data := records.Get([]byte(key))
		if data == nil {
			return nil
		}
		value, found = string(data), true
		return nil
	})
	return value, found, err
}

// Set stores a single record
func (s *Storage) Set(key, value string) error {
	return s.Commit(Changeset{Records: map[string]*string{key: &value}})
}

// Keys returns all record keys in sorted order
func (s *Storage) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket(RecordsBucket)
		if records == nil {
			return ErrNotInitialized
		}
		return records.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	sort.Strings(keys)
	return keys, err
}

// Commit applies a changeset atomically and bumps the modified timestamp
func (s *Storage) Commit(c Changeset) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(RecordsBucket)
		images := tx.Bucket(ImagesBucket)
		ancestry := tx.Bucket(AncestryBucket)
		config := tx.Bucket(ConfigBucket)
		if records == nil || images == nil || ancestry == nil || config == nil {
			return ErrNotInitialized
		}

		for key, value := range c.Records {
			var err error
			if value == nil {
				err = records.Delete([]byte(key))
			} else {
				err = records.Put([]byte(key), []byte(*value))
			}
			if err != nil {
				return fmt.Errorf("failed to write record %s: %w", key, err)
			}
		}
		for id, data := range c.Images {
			if err := images.Put([]byte(id), data); err != nil {
				return fmt.Errorf("failed to write image %s: %w", id, err)
			}
		}
		for name, data := range c.Ancestors {
			if err := ancestry.Put([]byte(name), data); err != nil {
				return fmt.Errorf("failed to write ancestor %s: %w", name, err)
			}
		}

		modified, _ := time.Now().MarshalBinary()
		return config.Put(ConfigModified, modified)
	})
}

// ForEachImage calls fn for every cached image entry in key order
func (s *Storage) ForEachImage(fn func(id string, data []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		images := tx.Bucket(ImagesBucket)
		if images == nil {
			return ErrNotInitialized
		}
		return images.ForEach(func(k, v []byte) error {
			// Copy since the slice is only valid during the transaction
			return fn(string(k), append([]byte(nil), v...))
		})
	})
}

// Ancestor returns the stored snapshot with the given name
func (s *Storage) Ancestor(name string) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		ancestry := tx.Bucket(AncestryBucket)
		if ancestry == nil {
			return ErrNotInitialized
		}
		if v := ancestry.Get([]byte(name)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	return data, data != nil, err
}

// GetModified retrieves the last modified timestamp
func (s *Storage) GetModified() (time.Time, error) {
	return s.getTime(ConfigModified)
}

// GetLastExport retrieves the time of the last successful export
func (s *Storage) GetLastExport() (time.Time, error) {
	return s.getTime(ConfigLastExport)
}

// SetLastExport records the time of a successful export
func (s *Storage) SetLastExport(t time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		data, err := t.MarshalBinary()
		if err != nil {
			return err
		}
		return config.Put(ConfigLastExport, data)
	})
}

func (s *Storage) getTime(key []byte) (time.Time, error) {
	var t time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		data := config.Get(key)
		if data == nil {
			return fmt.Errorf("%s not found", key)
		}
		return t.UnmarshalBinary(data)
	})
	return t, err
}

// GetDeviceID retrieves the device ID from config bucket
func (s *Storage) GetDeviceID() (string, error) {
	var deviceID string
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		data := config.Get(ConfigDeviceID)
		if data == nil {
			return fmt.Errorf("device_id not found")
		}
		deviceID = string(data)
		return nil
	})
	return deviceID, err
}

// GetOrCreateDeviceID retrieves existing device ID or generates a new one
func (s *Storage) GetOrCreateDeviceID() (string, error) {
	deviceID, err := s.GetDeviceID()
	if err == nil {
		return deviceID, nil
	}

	deviceID = uuid.NewString()
	err = s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return ErrNotInitialized
		}
		return config.Put(ConfigDeviceID, []byte(deviceID))
	})
	if err != nil {
		return "", err
	}

	return deviceID, nil
}

// Compact creates a compacted copy of the database, removing unused space.
func (s *Storage) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	dst, err := bolt.Open(tmpPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})

	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	// Atomic replace
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)

	s.db, err = bolt.Open(srcPath, 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}

	return nil
}
