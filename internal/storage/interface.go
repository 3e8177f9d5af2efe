package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a stored object does not exist
var ErrNotFound = errors.New("object not found")

// StorageInterface defines the contract for export storage
type StorageInterface interface {
	Store(ctx context.Context, filename string, data []byte) error
	Retrieve(ctx context.Context, filename string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, filename string) error
}
