package store

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is the panic value raised by RecordStore.Get when a
// position does not exist. Positions come from the vector index, so this
// means the artifacts were built from mismatched inputs.
var ErrIndexOutOfRange = errors.New("record position out of range")

// StoreLoadError reports that build artifacts are missing, unreadable or
// inconsistent with each other or with the configured encoder.
type StoreLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *StoreLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store load %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("store load %s: %s", e.Path, e.Reason)
}

func (e *StoreLoadError) Unwrap() error { return e.Err }

// IsStoreLoadError reports whether err is or wraps a StoreLoadError
func IsStoreLoadError(err error) bool {
	var target *StoreLoadError
	return errors.As(err, &target)
}
