package block

import "errors"

var (
	// ErrInvalidKeyLength indicates key material of the wrong size for the mode.
	ErrInvalidKeyLength = errors.New("block: invalid key length")

	// ErrInvalidBufferLength indicates an input buffer of the wrong size for the operation.
	ErrInvalidBufferLength = errors.New("block: invalid buffer length")
)
