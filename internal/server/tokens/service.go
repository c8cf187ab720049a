// Package tokens issues, validates and renews bearer tokens. Token records
// live only in the remote record store; every validation re-reads them.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/r2relay/internal/common"
	"github.com/dmitrijs2005/r2relay/internal/logging"
	"github.com/dmitrijs2005/r2relay/internal/server/models"
)

// tokenBytes is the amount of randomness behind each bearer token.
const tokenBytes = 32

const (
	StatusSuccess = "success"

	MessagePermanentToTimed = "token changed from permanent to timed"
	MessageAlreadyPermanent = "token is already permanent"
	MessageTimedToPermanent = "token set to permanent"
	MessageExtended         = "token validity extended"
)

type Service struct {
	repo   Repository
	logger logging.Logger
	now    func() time.Time
}

func NewService(repo Repository, l logging.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: l.With("module", "tokens"),
		now:    time.Now,
	}
}

// day is a calendar-independent day, so expiries move by exactly 24h per
// day regardless of DST changes.
func day(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

// checkDays accepts a positive day count or common.PermanentDays.
func checkDays(days int) error {
	if days == common.PermanentDays || days > 0 {
		return nil
	}
	return fmt.Errorf("%w: days must be positive or %d, got %d", common.ErrorValidation, common.PermanentDays, days)
}

// Create issues a new token. expiresInDays of common.PermanentDays makes it
// permanent.
func (s *Service) Create(ctx context.Context, username, email string, expiresInDays int) (*models.IssuedToken, error) {
	if err := checkDays(expiresInDays); err != nil {
		return nil, err
	}

	secret, err := common.MakeURLSafeToken(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	// the record store keeps whole seconds
	now := s.now().Truncate(time.Second)
	t := &models.Token{
		ID:          uuid.NewString(),
		Token:       secret,
		Username:    username,
		Email:       email,
		Active:      true,
		CreatedAt:   now,
		IsPermanent: expiresInDays == common.PermanentDays,
	}
	if !t.IsPermanent {
		exp := now.Add(day(expiresInDays))
		t.ExpiresAt = &exp
	}

	t, err = s.repo.Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	s.logger.Info(ctx, "token issued", "id", t.ID, "username", t.Username, "permanent", t.IsPermanent)

	return &models.IssuedToken{
		ID:          t.ID,
		Token:       t.Token,
		CreatedAt:   t.CreatedAt,
		ExpiresAt:   t.ExpiresAt,
		IsPermanent: t.IsPermanent,
	}, nil
}

// Validate returns the stored token when it is known, active and, for timed
// tokens, not yet expired. Every other outcome is common.ErrInvalidToken,
// except record store failures which are returned as they are.
func (s *Service) Validate(ctx context.Context, token string) (*models.Token, error) {
	if token == "" {
		return nil, common.ErrInvalidToken
	}

	t, err := s.repo.FindByToken(ctx, token)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrorNotFound):
		return nil, common.ErrInvalidToken
	case errors.Is(err, errMalformedRecord):
		s.logger.Warn(ctx, "unreadable token record", "error", err)
		return nil, common.ErrInvalidToken
	default:
		return nil, err
	}

	if !t.Active {
		return nil, common.ErrInvalidToken
	}
	if !t.IsPermanent && (t.ExpiresAt == nil || !s.now().Before(*t.ExpiresAt)) {
		return nil, common.ErrInvalidToken
	}
	return t, nil
}

type transition struct {
	fromPermanent bool
	toPermanent   bool
}

type renewal struct {
	// update is nil when the record stays as it is.
	update    *ValidityUpdate
	message   string
	expiresAt *time.Time
}

// planRenewal decides what a renewal of cur by days does. Extending a timed
// token counts from its current expiry; leaving permanence starts from now.
func planRenewal(cur *models.Token, days int, now time.Time) renewal {
	tr := transition{fromPermanent: cur.IsPermanent, toPermanent: days == common.PermanentDays}

	switch tr {
	case transition{fromPermanent: true, toPermanent: false}:
		exp := now.Truncate(time.Second).Add(day(days))
		return renewal{
			update:    &ValidityUpdate{PermanenceChanged: true, IsPermanent: false, ExpiresAt: &exp},
			message:   MessagePermanentToTimed,
			expiresAt: &exp,
		}
	case transition{fromPermanent: true, toPermanent: true}:
		return renewal{message: MessageAlreadyPermanent}
	case transition{fromPermanent: false, toPermanent: true}:
		return renewal{
			update:  &ValidityUpdate{PermanenceChanged: true, IsPermanent: true},
			message: MessageTimedToPermanent,
		}
	default:
		exp := cur.ExpiresAt.Add(day(days))
		return renewal{
			update:    &ValidityUpdate{ExpiresAt: &exp},
			message:   MessageExtended,
			expiresAt: &exp,
		}
	}
}

func describeValidity(t *models.Token) string {
	if t.IsPermanent || t.ExpiresAt == nil {
		return "permanent"
	}
	return "valid until " + formatTime(*t.ExpiresAt)
}

// Renew changes the lifetime of a valid token. extendDays of
// common.PermanentDays makes it permanent; a positive value sets or extends
// a timed expiry. Invalid tokens are never re-created.
func (s *Service) Renew(ctx context.Context, token string, extendDays int) (*models.RenewResult, error) {
	if err := checkDays(extendDays); err != nil {
		return nil, err
	}

	cur, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	plan := planRenewal(cur, extendDays, s.now())
	if plan.update != nil {
		if err := s.repo.UpdateValidity(ctx, cur.RemoteID, *plan.update); err != nil {
			return nil, fmt.Errorf("renew token: %w", err)
		}
	}

	s.logger.Info(ctx, "token renewed", "id", cur.ID, "days", extendDays, "result", plan.message)

	res := &models.RenewResult{
		Status:      StatusSuccess,
		Message:     plan.message,
		Token:       token,
		OldStatus:   describeValidity(cur),
		IsPermanent: extendDays == common.PermanentDays,
	}
	if !res.IsPermanent {
		days := extendDays
		res.NewExpiresAt = plan.expiresAt
		res.ExtendedDays = &days
	}
	return res, nil
}
