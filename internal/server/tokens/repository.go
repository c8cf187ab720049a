package tokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/r2relay/internal/server/models"
)

// ValidityUpdate describes a change to a token's lifetime.
type ValidityUpdate struct {
	// PermanenceChanged is set when is_permanent must be rewritten.
	PermanenceChanged bool
	IsPermanent       bool
	// ExpiresAt is the new expiry; nil clears it.
	ExpiresAt *time.Time
}

type Repository interface {
	Create(ctx context.Context, t *models.Token) (*models.Token, error)
	// FindByToken returns common.ErrorNotFound when no record holds token.
	FindByToken(ctx context.Context, token string) (*models.Token, error)
	UpdateValidity(ctx context.Context, remoteID string, u ValidityUpdate) error
}
