package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrNoCredentialAvailable = errors.New("no credential available")
	ErrInsufficientCredits   = errors.New("insufficient credits")
	ErrUpstream              = errors.New("upstream failure")
	ErrUnsupportedJobType    = errors.New("unsupported job type")
)
