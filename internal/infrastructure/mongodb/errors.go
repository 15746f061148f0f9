package mongodb

import "errors"

// Sentinel errors for MongoDB operations.
var (
	// ErrConnectionFailed indicates every connection attempt failed.
	ErrConnectionFailed = errors.New("mongodb: connection failed")

	// ErrNotConnected indicates the client has been closed.
	ErrNotConnected = errors.New("mongodb: not connected")
)
