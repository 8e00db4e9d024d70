// Package storage is the persistence port documents are loaded from and
// saved to. Values are opaque serialized documents addressed by key.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrNotFound   = errors.New("storage: key not found")
	ErrExists     = errors.New("storage: key already exists")
	ErrInvalidKey = errors.New("storage: invalid key")
	ErrClosed     = errors.New("storage: closed")
)

type Storage interface {
	Create(ctx context.Context, key string, value []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Update(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Keys lists every stored key in ascending order.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateKey reports whether key can be used with every backend. Keys double
// as file names on disk, so separators and dot-prefixed names are rejected.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Put writes value under key whether or not the key exists yet.
func Put(ctx context.Context, s Storage, key string, value []byte) error {
	err := s.Update(ctx, key, value)
	if errors.Is(err, ErrNotFound) {
		err = s.Create(ctx, key, value)
	}
	return err
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendDisk   = "disk"
	BackendSQLite = "sqlite"
)

// Open creates the backend called name rooted at path.
func Open(name, path string) (Storage, error) {
	switch name {
	case BackendMemory:
		return NewMemory(), nil
	case BackendDisk:
		return NewDisk(path), nil
	case BackendSQLite:
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", name)
	}
}
