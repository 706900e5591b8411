package store

import "fmt"

// PersistenceError reports a durable write that failed after the in-memory
// state was already updated.
type PersistenceError struct {
	Collection string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Collection, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// WrapPersist returns nil for a nil err and a *PersistenceError otherwise.
func WrapPersist(collection string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Collection: collection, Err: err}
}
