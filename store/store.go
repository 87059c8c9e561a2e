// Package store keeps raw source files by id.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sync"
)

// ErrNotFound is returned for an id with no stored blob.
var ErrNotFound = errors.New("store: not found")

// ErrInvalidID is returned for ids that cannot name a file.
var ErrInvalidID = errors.New("store: invalid id")

// Store holds immutable blobs by id.
type Store interface {
	Get(id string) ([]byte, error)
	Put(id string, data []byte) error
	Delete(id string) error
}

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

func checkID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	return nil
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

// Get returns a copy of the blob.
func (m *Memory) Get(id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	return slices.Clone(b), nil
}

// Put stores a copy of data under id, replacing any previous blob.
func (m *Memory) Put(id string, data []byte) error {
	if err := checkID(id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[id] = slices.Clone(data)

	return nil
}

// Delete removes id.
func (m *Memory) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	delete(m.blobs, id)

	return nil
}

// Dir stores one file per id in a directory.
type Dir struct {
	root string
}

// NewDir uses root, creating it if needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	return &Dir{root: root}, nil
}

// Get reads the file for id.
func (d *Dir) Get(id string) ([]byte, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	b, err := os.ReadFile(d.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	return b, nil
}

// Put writes data through a temporary file and renames it into place.
func (d *Dir) Put(id string, data []byte) error {
	if err := checkID(id); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.root, ".put-*")
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("store: write %q: %w", id, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("store: write %q: %w", id, err)
	}

	if err := os.Rename(tmp.Name(), d.path(id)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("store: write %q: %w", id, err)
	}

	return nil
}

// Delete removes the file for id.
func (d *Dir) Delete(id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	err := os.Remove(d.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	return nil
}

func (d *Dir) path(id string) string {
	return filepath.Join(d.root, id)
}
