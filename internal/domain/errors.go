package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidPrompt   = errors.New("invalid prompt")
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrStoreFailure    = errors.New("wardrobe store failure")
	ErrProviderFailure = errors.New("provider failure")
)
