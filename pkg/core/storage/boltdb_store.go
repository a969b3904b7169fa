package storage

import (
	"bytes"
	"fmt"
	"os"

	"github.com/nspcc-dev/attestree/pkg/core/storage/dbconfig"
	"github.com/nspcc-dev/attestree/pkg/io"
	"go.etcd.io/bbolt"
)

// Bucket represents bucket used in boltdb to store all the data.
var Bucket = []byte("DB")

const boltInitialMmapSize = 256 << 20

// BoltDBStore it is the storage implementation for storing and retrieving
// chain state and attestations.
type BoltDBStore struct {
	db *bbolt.DB
}

// boltDBSnapshot is an open read-only BoltDB transaction.
type boltDBSnapshot struct {
	tx *bbolt.Tx
}

// NewBoltDBStore returns a new ready to use BoltDB storage with created bucket.
func NewBoltDBStore(cfg dbconfig.BoltDBOptions) (*BoltDBStore, error) {
	cp := *bbolt.DefaultOptions // Do not change bbolt's global variable.
	opts := &cp
	// Open snapshots don't block writers until the DB outgrows it.
	opts.InitialMmapSize = boltInitialMmapSize
	fileMode := os.FileMode(0600) // should be exposed via BoltDBOptions if anything needed
	fileName := cfg.FilePath
	if cfg.ReadOnly {
		opts.ReadOnly = true
	} else {
		if err := io.MakeDirForFile(fileName, "BoltDB"); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(fileName, fileMode, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB instance: %w", err)
	}
	if opts.ReadOnly {
		err = db.View(func(tx *bbolt.Tx) error {
			b := tx.Bucket(Bucket)
			if b == nil {
				return fmt.Errorf("root bucket does not exist")
			}
			return nil
		})
	} else {
		err = db.Update(func(tx *bbolt.Tx) error {
			_, err = tx.CreateBucketIfNotExists(Bucket)
			if err != nil {
				return fmt.Errorf("could not create root bucket: %w", err)
			}
			return nil
		})
	}
	if err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			err = fmt.Errorf("%w, failed to close BoltDB: %v", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize BoltDB instance: %w", err)
	}

	return &BoltDBStore{db: db}, nil
}

// Get implements the Store interface.
func (s *BoltDBStore) Get(key []byte) (val []byte, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(Bucket)
		val = b.Get(key)
		// Value from Get is only valid for the lifetime of transaction, #1482
		if val != nil {
			val = bytes.Clone(val)
		}
		return nil
	})
	if val == nil {
		err = ErrKeyNotFound
	}
	return
}

// PutChangeSet implements the Store interface.
func (s *BoltDBStore) PutChangeSet(puts map[string][]byte) error {
	var err error

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(Bucket)
		for k, v := range puts {
			if v != nil {
				err = b.Put([]byte(k), v)
			} else {
				err = b.Delete([]byte(k))
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Seek implements the Store interface.
func (s *BoltDBStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	_ = s.db.View(func(tx *bbolt.Tx) error {
		boltSeek(tx.Bucket(Bucket).Cursor(), rng, f)
		return nil
	})
}

// Snapshot implements the Store interface. It keeps a read transaction open
// until released, so it must not be held while writing to the same store
// from the same goroutine.
func (s *BoltDBStore) Snapshot() (Snapshot, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB transaction: %w", err)
	}
	return &boltDBSnapshot{tx: tx}, nil
}

func boltSeek(c *bbolt.Cursor, rng SeekRange, f func(k, v []byte) bool) {
	var (
		k, v  []byte
		next  func() ([]byte, []byte)
		rang  = seekRangeToPrefixes(rng)
		limit = rang.Limit
	)
	if !rng.Backwards {
		if len(rang.Start) == 0 {
			k, v = c.First()
		} else {
			k, v = c.Seek(rang.Start)
		}
		next = c.Next
	} else {
		if len(limit) == 0 {
			k, v = c.Last()
		} else {
			k, v = c.Seek(limit)
			if k == nil {
				k, v = c.Last()
			} else {
				k, v = c.Prev()
			}
		}
		next = c.Prev
	}
	for ; k != nil; k, v = next() {
		if !bytes.HasPrefix(k, rng.Prefix) {
			break
		}
		if !rng.Backwards && len(limit) != 0 && bytes.Compare(k, limit) >= 0 {
			break
		}
		if rng.Backwards && bytes.Compare(k, rang.Start) < 0 {
			break
		}
		if !f(k, v) {
			break
		}
	}
}

// Close releases all db resources.
func (s *BoltDBStore) Close() error {
	return s.db.Close()
}

// Get implements the Snapshot interface.
func (s *boltDBSnapshot) Get(key []byte) ([]byte, error) {
	val := s.tx.Bucket(Bucket).Get(key)
	if val == nil {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(val), nil
}

// Seek implements the Snapshot interface.
func (s *boltDBSnapshot) Seek(rng SeekRange, f func(k, v []byte) bool) {
	boltSeek(s.tx.Bucket(Bucket).Cursor(), rng, f)
}

// Release implements the Snapshot interface.
func (s *boltDBSnapshot) Release() {
	_ = s.tx.Rollback()
}
