package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrEmptyKey     = errors.New("empty key")
	ErrInvalidData  = errors.New("invalid data type")
	ErrEntityExists = errors.New("entity already exists")

	// Federation error taxonomy. Transport and auth failures are surfaced
	// to callers as typed errors and logged, never panicked.
	ErrConnectionFailed     = errors.New("connection failed")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAuthorizationFailed  = errors.New("authorization failed")
	ErrMessageTimeout       = errors.New("message timeout")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrNodeUnavailable      = errors.New("no node available")
	ErrTLS                  = errors.New("tls configuration error")
	ErrPoolExhausted        = errors.New("connection pool exhausted")
	ErrHealthCheckFailed    = errors.New("health check failed")
)
