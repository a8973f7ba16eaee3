package block

import "errors"

var (
	// ErrFileNotOpen is returned by any Manager operation invoked before
	// Open has succeeded.
	ErrFileNotOpen = errors.New("block: file not open")

	// ErrAlreadyOpen is returned by a second Open call while a file is
	// already open.
	ErrAlreadyOpen = errors.New("block: file already open")

	// ErrUnsupportedSchema is returned when an existing file's schema
	// version does not match what this build understands.
	ErrUnsupportedSchema = errors.New("block: unsupported schema version")

	// ErrPayloadTooLarge is returned when a value's serialized payload
	// exceeds PayloadLimit.
	ErrPayloadTooLarge = errors.New("block: payload exceeds size limit")
)
