package ctr

import "errors"

// ErrNegativeOffset indicates a stream offset below zero.
var ErrNegativeOffset = errors.New("ctr: negative offset")
