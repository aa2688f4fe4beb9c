// Package store defines the persistence contract the task service depends
// on and the backends that satisfy it.
//
// Every backend returns tasks in ascending id order from ListAll. Reads
// report absence through their return values; only write failures are
// surfaced as *StorageError, after any partial effect has been undone.
package store

import (
	"context"
	"errors"
	"fmt"

	"todo-api/internal/models"
)

// ErrNotFound is returned by Update when the record disappeared between
// the caller's lookup and the write.
var ErrNotFound = errors.New("task not found")

type TaskStore interface {
	Get(ctx context.Context, id int64) (models.Task, bool, error)
	ListAll(ctx context.Context) ([]models.Task, error)
	// Insert assigns the id and returns the stored record.
	Insert(ctx context.Context, task models.Task) (models.Task, error)
	// Update replaces the whole record identified by task.ID.
	Update(ctx context.Context, task models.Task) (models.Task, error)
	// Delete reports whether a record existed and was removed.
	Delete(ctx context.Context, id int64) (bool, error)
	Health(ctx context.Context) error
	Close() error
}

// OwnerResolver is implemented by backends whose records carry an owner
// identifier.
type OwnerResolver interface {
	OwnerOf(id int64) (string, bool)
}

// StorageError wraps an underlying persistence failure during a write.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
