package tokens

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/r2relay/internal/server/config"
	"github.com/dmitrijs2005/r2relay/internal/server/models"
	"github.com/dmitrijs2005/r2relay/internal/server/recordstore"
)

// TimeLayout is how timestamps are written to the record store, in local time.
const TimeLayout = "2006-01-02 15:04:05"

var errMalformedRecord = errors.New("malformed token record")

// schema maps token attributes to record store fields.
type schema struct {
	id          recordstore.Field
	active      recordstore.Field
	username    recordstore.Field
	email       recordstore.Field
	token       recordstore.Field
	createdAt   recordstore.Field
	expiresAt   recordstore.Field
	isPermanent recordstore.Field
}

func newSchema(ids config.FieldIDs) schema {
	return schema{
		id:          recordstore.Field{ID: ids.ID, Title: "id"},
		active:      recordstore.Field{ID: ids.Active, Title: "active"},
		username:    recordstore.Field{ID: ids.Username, Title: "username"},
		email:       recordstore.Field{ID: ids.Email, Title: "email"},
		token:       recordstore.Field{ID: ids.Token, Title: "token"},
		createdAt:   recordstore.Field{ID: ids.CreatedAt, Title: "created_at"},
		expiresAt:   recordstore.Field{ID: ids.ExpiresAt, Title: "expires_at"},
		isPermanent: recordstore.Field{ID: ids.IsPermanent, Title: "is_permanent"},
	}
}

func formatTime(t time.Time) string {
	return t.In(time.Local).Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, strings.TrimSpace(s), time.Local)
}

func formatBool(b bool) string {
	return strconv.FormatBool(b)
}

func parseBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

// encode renders a new token record. expires_at is left out for permanent tokens.
func (s schema) encode(t *models.Token) []recordstore.Answer {
	answers := []recordstore.Answer{
		recordstore.NewAnswer(s.id, t.ID),
		recordstore.NewAnswer(s.active, formatBool(t.Active)),
		recordstore.NewAnswer(s.username, t.Username),
		recordstore.NewAnswer(s.email, t.Email),
		recordstore.NewAnswer(s.token, t.Token),
		recordstore.NewAnswer(s.createdAt, formatTime(t.CreatedAt)),
		recordstore.NewAnswer(s.isPermanent, formatBool(t.IsPermanent)),
	}
	if !t.IsPermanent && t.ExpiresAt != nil {
		answers = append(answers, recordstore.NewAnswer(s.expiresAt, formatTime(*t.ExpiresAt)))
	}
	return answers
}

// encodeUpdate renders only the fields a validity change touches. An empty
// expires_at clears the stored expiry.
func (s schema) encodeUpdate(u ValidityUpdate) []recordstore.Answer {
	var answers []recordstore.Answer
	if u.PermanenceChanged {
		answers = append(answers, recordstore.NewAnswer(s.isPermanent, formatBool(u.IsPermanent)))
	}
	expires := ""
	if u.ExpiresAt != nil {
		expires = formatTime(*u.ExpiresAt)
	}
	return append(answers, recordstore.NewAnswer(s.expiresAt, expires))
}

// decode reads a token out of a record. A timed token whose expiry is missing
// or unreadable is reported as errMalformedRecord.
func (s schema) decode(rec *recordstore.Record) (*models.Token, error) {
	values := make(map[int]string, len(rec.Answers))
	for _, a := range rec.Answers {
		if len(a.Values) > 0 {
			values[a.QueID] = a.First()
		}
	}

	t := &models.Token{
		ID:          values[s.id.ID],
		Token:       values[s.token.ID],
		Username:    values[s.username.ID],
		Email:       values[s.email.ID],
		Active:      parseBool(values[s.active.ID]),
		IsPermanent: parseBool(values[s.isPermanent.ID]),
		RemoteID:    string(rec.ID),
	}
	if v := values[s.createdAt.ID]; v != "" {
		if created, err := parseTime(v); err == nil {
			t.CreatedAt = created
		}
	}
	if t.IsPermanent {
		return t, nil
	}

	raw := values[s.expiresAt.ID]
	if strings.TrimSpace(raw) == "" {
		return t, errMalformedRecord
	}
	exp, err := parseTime(raw)
	if err != nil {
		return t, errMalformedRecord
	}
	t.ExpiresAt = &exp
	return t, nil
}
