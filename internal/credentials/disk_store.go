package credentials

import (
	"fmt"
	"os"

	"github.com/peterbourgon/diskv"
)

// cacheSizeMaxBytes bounds the diskv read cache; credentials are tiny.
const cacheSizeMaxBytes = 4096

// DiskStore stores one file per key in a directory.
type DiskStore struct {
	dir string
	dv  *diskv.Diskv
}

// NewDiskStore creates a diskv backed store rooted at dir.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("disk store requires a directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Flat layout: every key is a file directly under dir.
	flatTransform := func(s string) []string { return []string{} }

	dv := diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    flatTransform,
		CacheSizeMax: cacheSizeMaxBytes,
		PathPerm:     0o700,
		FilePerm:     0o600,
	})
	return &DiskStore{dir: dir, dv: dv}, nil
}

// Get returns the value stored under key.
func (d *DiskStore) Get(key string) (string, error) {
	if !d.dv.Has(key) {
		return "", nil
	}
	b, err := d.dv.Read(key)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(b), nil
}

// Set stores value under key.
func (d *DiskStore) Set(key, value string) error {
	if err := d.dv.Write(key, []byte(value)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (d *DiskStore) Remove(key string) error {
	if !d.dv.Has(key) {
		return nil
	}
	if err := d.dv.Erase(key); err != nil {
		return fmt.Errorf("failed to erase %s: %w", key, err)
	}
	return nil
}

// Name returns the store name
func (d *DiskStore) Name() string {
	return fmt.Sprintf("DiskStore(%s)", d.dir)
}
