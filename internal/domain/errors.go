package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrCorrupted       = errors.New("corrupted record")
	ErrProviderFailure = errors.New("provider failure")
	ErrPollTimeout     = errors.New("poll timeout")
)
