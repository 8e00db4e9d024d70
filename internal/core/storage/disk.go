package storage

import (
	"context"
	"errors"
	"io/fs"
	"slices"
	"strings"
	"sync"

	"github.com/peterbourgon/diskv/v3"
)

// Disk stores one file per key below a base directory. Keys sharing the
// prefix before the first '-' are grouped in one directory, so a document and
// its backups sit next to each other.
type Disk struct {
	mu sync.Mutex
	d  *diskv.Diskv
}

func NewDisk(basePath string) *Disk {
	return &Disk{d: diskv.New(diskv.Options{
		BasePath:          basePath,
		AdvancedTransform: keyToPathTransform,
		InverseTransform:  pathToKeyTransform,
		CacheSizeMax:      1024 * 1024, // 1MB
	})}
}

func keyToPathTransform(key string) *diskv.PathKey {
	group, _, _ := strings.Cut(key, "-")
	return &diskv.PathKey{
		Path:     []string{group},
		FileName: key,
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	return pathKey.FileName
}

func (s *Disk) Create(_ context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.d.Has(key) {
		return ErrExists
	}
	return s.d.Write(key, value)
}

func (s *Disk) Read(_ context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	value, err := s.d.Read(key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return value, err
}

func (s *Disk) Update(_ context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.d.Has(key) {
		return ErrNotFound
	}
	return s.d.Write(key, value)
}

func (s *Disk) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.d.Erase(key)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (s *Disk) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	for key := range s.d.Keys(ctx.Done()) {
		keys = append(keys, key)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

// Close is a no-op; every write is flushed to disk before it returns.
func (s *Disk) Close() error {
	return nil
}
