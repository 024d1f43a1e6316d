package store

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const metaSuffix = ".meta"

// FSStore is an ObjectStore rooted at a local directory. It backs the local
// working storage used by analysis runs and doubles as the remote store in
// development setups.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem store rooted at dir, creating it if
// needed.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{root: dir}, nil
}

// Root returns the store's base directory.
func (s *FSStore) Root() string {
	return s.root
}

// Put writes the object to disk. Metadata, when present, goes to a sidecar
// file next to the object.
func (s *FSStore) Put(_ context.Context, key string, data []byte, meta Metadata) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	if len(meta) == 0 {
		return nil
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(path+metaSuffix, encoded, 0o644)
}

// Get reads an object by key.
func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

// GetMetadata reads the metadata sidecar for a key. Objects stored without
// metadata yield an empty map.
func (s *FSStore) GetMetadata(_ context.Context, key string) (Metadata, error) {
	data, err := os.ReadFile(s.path(key) + metaSuffix)
	if os.IsNotExist(err) {
		return Metadata{}, nil
	}
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// List walks the tree under prefix and returns object keys in slash form.
// Metadata sidecars are not listed.
func (s *FSStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Close is a no-op for the filesystem store.
func (s *FSStore) Close() error {
	return nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}
