package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrSourceClosed       = errors.New("line source closed")
	ErrNoPort             = errors.New("no serial port found")
	ErrBackendUnavailable = errors.New("speech backend unavailable")
	ErrQueueFull          = errors.New("speech queue full")
)
