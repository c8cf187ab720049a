package tokens

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/r2relay/internal/common"
	"github.com/dmitrijs2005/r2relay/internal/server/config"
	"github.com/dmitrijs2005/r2relay/internal/server/models"
	"github.com/dmitrijs2005/r2relay/internal/server/recordstore"
)

// RemoteRepository keeps tokens as records of the remote forms database.
type RemoteRepository struct {
	store  recordstore.Repository
	schema schema
}

func NewRemoteRepository(store recordstore.Repository, ids config.FieldIDs) *RemoteRepository {
	return &RemoteRepository{store: store, schema: newSchema(ids)}
}

func (r *RemoteRepository) Create(ctx context.Context, t *models.Token) (*models.Token, error) {
	id, err := r.store.CreateRecord(ctx, r.schema.encode(t))
	if err != nil {
		return nil, err
	}
	t.RemoteID = string(id)
	return t, nil
}

// FindByToken matches on the token field and then rechecks the value, since
// the remote search is not guaranteed to be an exact match.
func (r *RemoteRepository) FindByToken(ctx context.Context, token string) (*models.Token, error) {
	rec, err := r.store.FindByField(ctx, r.schema.token, token)
	if err != nil {
		return nil, err
	}

	t, err := r.schema.decode(rec)
	if err != nil && !errors.Is(err, errMalformedRecord) {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(t.Token), []byte(token)) != 1 {
		return nil, fmt.Errorf("token record: %w", common.ErrorNotFound)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("token record without id: %w", errMalformedRecord)
	}
	if err != nil {
		return nil, fmt.Errorf("token record %s: %w", rec.ID, err)
	}
	return t, nil
}

func (r *RemoteRepository) UpdateValidity(ctx context.Context, remoteID string, u ValidityUpdate) error {
	return r.store.UpdateByID(ctx, recordstore.RecordID(remoteID), r.schema.encodeUpdate(u))
}
