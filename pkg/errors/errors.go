package snapshoot_errors

import "errors"

// Common errors
var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrOffline           = errors.New("no network connection")
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrStoreUnavailable  = errors.New("local store unavailable")
)
