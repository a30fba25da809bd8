// Package bolt stores wallet keys in a bbolt file, one bucket per wallet.
package bolt

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// DefaultOpenTimeout bounds how long Open waits for the file lock.
const DefaultOpenTimeout = time.Second

// DB wraps bbolt.DB for dependency injection.
type DB struct {
	*bbolt.DB
}

// Open opens or creates the wallet file at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create wallet dir: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: DefaultOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open wallet file %s: %w", path, err)
	}
	return &DB{DB: db}, nil
}

// Close closes the wallet file.
func (d *DB) Close() error {
	return d.DB.Close()
}
