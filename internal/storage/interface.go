package storage

import "errors"

// ErrNotFound is returned by Retrieve when no object exists under the name
var ErrNotFound = errors.New("storage: object not found")

// StorageInterface defines the contract for storage operations
type StorageInterface interface {
	Store(filename string, data []byte) error
	Retrieve(filename string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(filename string) error
}
