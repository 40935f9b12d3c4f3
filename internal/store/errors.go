package store

import "errors"

var (
	// ErrNotInitialized is returned by operations called before Initialize.
	ErrNotInitialized = errors.New("store not initialized")

	// ErrClosed is returned by operations called after Close.
	ErrClosed = errors.New("store closed")
)
