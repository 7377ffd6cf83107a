package repositories

import (
	"errors"
	"fmt"
)

// StorageKind separates "the store cannot be reached" from "the store
// rejected what we wrote".
type StorageKind string

const (
	KindUnavailable StorageKind = "unavailable"
	KindWrite       StorageKind = "write"
)

var (
	// ErrStorageUnavailable matches any StorageError of KindUnavailable.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrStorageWrite matches any StorageError of KindWrite.
	ErrStorageWrite = errors.New("storage write failed")
	// ErrProductNotFound is returned by FindByID for unknown ids.
	ErrProductNotFound = errors.New("product not found")
)

// StorageError is returned by every ProductRepository operation that fails
// inside the persistence layer.
type StorageError struct {
	Kind StorageKind
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStorageUnavailable) and
// errors.Is(err, ErrStorageWrite) match on kind.
func (e *StorageError) Is(target error) bool {
	switch target {
	case ErrStorageUnavailable:
		return e.Kind == KindUnavailable
	case ErrStorageWrite:
		return e.Kind == KindWrite
	}
	return false
}

func unavailable(op string, err error) error {
	return &StorageError{Kind: KindUnavailable, Op: op, Err: err}
}

func writeFailed(op string, err error) error {
	return &StorageError{Kind: KindWrite, Op: op, Err: err}
}
