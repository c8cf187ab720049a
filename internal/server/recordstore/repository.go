package recordstore

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/r2relay/internal/common"
)

// Repository is the field-agnostic record store contract the token layer
// depends on. Client is the production implementation.
type Repository interface {
	CreateRecord(ctx context.Context, answers []Answer) (RecordID, error)
	// FindByField returns the first record whose field equals value, or
	// common.ErrorNotFound.
	FindByField(ctx context.Context, field Field, value string) (*Record, error)
	UpdateByID(ctx context.Context, id RecordID, answers []Answer) error
}

var _ Repository = (*Client)(nil)

func (c *Client) FindByField(ctx context.Context, field Field, value string) (*Record, error) {
	recs, err := c.QueryRecords(ctx, field, value, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("record store: %s=%q: %w", field.Title, value, common.ErrorNotFound)
	}
	return &recs[0], nil
}

func (c *Client) UpdateByID(ctx context.Context, id RecordID, answers []Answer) error {
	return c.UpdateRecord(ctx, id, answers)
}
