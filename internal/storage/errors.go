package storage

import "errors"

// ErrUnsupportedSchema is returned when an existing file's schema version
// does not match the version this build understands.
var ErrUnsupportedSchema = errors.New("storage: unsupported schema version")

// ErrBackendFailure wraps any error returned by the underlying SQLite
// engine. The original error remains reachable through errors.Unwrap /
// errors.As.
var ErrBackendFailure = errors.New("storage: backend failure")

func backendErr(err error) error {
	if err == nil {
		return nil
	}
	return &wrappedBackendError{err: err}
}

type wrappedBackendError struct{ err error }

func (e *wrappedBackendError) Error() string { return "storage: backend failure: " + e.err.Error() }
func (e *wrappedBackendError) Unwrap() error { return e.err }
func (e *wrappedBackendError) Is(target error) bool { return target == ErrBackendFailure }
