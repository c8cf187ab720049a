// Package common defines shared constants and sentinel errors used across
// the relay service. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Request validation errors.
	ErrorValidation = errors.New("validation error")

	// Transfer pipeline errors.
	ErrSizeLimitExceeded = errors.New("size limit exceeded")
	ErrInvalidObjectKey  = errors.New("invalid object key")
	ErrTransferTransport = errors.New("transfer transport error")
	ErrObjectStore       = errors.New("object store error")

	// Record store errors.
	ErrRemoteTimeout = errors.New("remote timeout")
	ErrRemoteService = errors.New("remote service error")

	// Auth errors. Unknown, inactive and expired tokens all map here.
	ErrInvalidToken = errors.New("invalid token")
)
