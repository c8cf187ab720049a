package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FieldIDs are the numeric ids of the token form fields in the record store.
type FieldIDs struct {
	ID          int `json:"id"`
	Active      int `json:"active"`
	Username    int `json:"username"`
	Email       int `json:"email"`
	Token       int `json:"token"`
	CreatedAt   int `json:"created_at"`
	ExpiresAt   int `json:"expires_at"`
	IsPermanent int `json:"is_permanent"`
}

func (f *FieldIDs) byName() map[string]*int {
	return map[string]*int{
		"id":           &f.ID,
		"active":       &f.Active,
		"username":     &f.Username,
		"email":        &f.Email,
		"token":        &f.Token,
		"created_at":   &f.CreatedAt,
		"expires_at":   &f.ExpiresAt,
		"is_permanent": &f.IsPermanent,
	}
}

// Validate checks that every field id is set and that no two fields share one.
func (f FieldIDs) Validate() error {
	seen := make(map[int]string)
	var errs []error
	for _, name := range fieldOrder {
		id := *f.byName()[name]
		if id <= 0 {
			errs = append(errs, fmt.Errorf("field id %q is not set", name))
			continue
		}
		if other, dup := seen[id]; dup {
			errs = append(errs, fmt.Errorf("field ids %q and %q are both %d", other, name, id))
			continue
		}
		seen[id] = name
	}
	return errors.Join(errs...)
}

// IsZero reports whether no field id is set.
func (f FieldIDs) IsZero() bool {
	return f == FieldIDs{}
}

// String renders the ids in the same form ParseFieldIDs accepts.
func (f FieldIDs) String() string {
	parts := make([]string, 0, len(fieldOrder))
	m := f.byName()
	for _, name := range fieldOrder {
		parts = append(parts, name+"="+strconv.Itoa(*m[name]))
	}
	return strings.Join(parts, ",")
}

var fieldOrder = []string{"id", "active", "username", "email", "token", "created_at", "expires_at", "is_permanent"}

// ParseFieldIDs reads "name=id" pairs separated by commas, e.g.
//
//	id=360860723,active=360860724,token=360860727
//
// and overlays them onto base. Unknown names are an error.
func ParseFieldIDs(s string, base FieldIDs) (FieldIDs, error) {
	out := base
	m := out.byName()
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return base, fmt.Errorf("field ids: %q is not name=id", pair)
		}
		target, known := m[strings.TrimSpace(name)]
		if !known {
			return base, fmt.Errorf("field ids: unknown field %q", name)
		}
		id, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return base, fmt.Errorf("field ids: %s: %w", name, err)
		}
		*target = id
	}
	return out, nil
}
