package models

import "time"

// Token is a bearer credential as stored in the remote record service.
// IsPermanent is true exactly when ExpiresAt is nil.
type Token struct {
	ID          string
	Token       string
	Username    string
	Email       string
	Active      bool
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	IsPermanent bool

	// RemoteID is the record service's own identifier, needed for updates.
	RemoteID string
}

// IssuedToken is returned by token registration.
type IssuedToken struct {
	ID          string
	Token       string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	IsPermanent bool
}

// RenewResult reports the outcome of a renewal.
type RenewResult struct {
	Status      string
	Message     string
	Token       string
	OldStatus   string
	IsPermanent bool

	// Set only when the token is timed after the renewal.
	NewExpiresAt *time.Time
	ExtendedDays *int
}
