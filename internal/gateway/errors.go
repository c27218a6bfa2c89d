package gateway

import "errors"

// Sentinel errors for the gateway package.
var (
	ErrAddrRequired     = errors.New("http address is required")
	ErrInvalidBodyLimit = errors.New("max body bytes must be positive")
	ErrInvalidRateLimit = errors.New("rate limit values must be positive when enabled")
)
