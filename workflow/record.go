package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by gateways when a workflow id does not exist.
var ErrNotFound = errors.New("workflow not found")

// Record is a named, persisted workflow definition.
type Record struct {
	ID          int64     `json:"id,omitempty"`
	Name        string    `json:"name" validate:"required,max=255"`
	Description string    `json:"description,omitempty"`
	Definition  Graph     `json:"definition"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// Persisted reports whether r has been assigned an id by the backend.
func (r Record) Persisted() bool {
	return r.ID != 0
}

// Validate checks the fields a backend requires before a create or update.
func (r Record) Validate() error {
	return validate.Struct(r)
}

// UnmarshalJSON accepts the timestamp layouts ParseTime understands.
func (r *Record) UnmarshalJSON(b []byte) error {
	type alias Record
	var raw struct {
		*alias
		CreatedAt *string `json:"created_at"`
		UpdatedAt *string `json:"updated_at"`
	}
	raw.alias = (*alias)(r)
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var err error
	if raw.CreatedAt != nil {
		if r.CreatedAt, err = ParseTime(*raw.CreatedAt); err != nil {
			return fmt.Errorf("created_at: %w", err)
		}
	}
	if raw.UpdatedAt != nil {
		if r.UpdatedAt, err = ParseTime(*raw.UpdatedAt); err != nil {
			return fmt.Errorf("updated_at: %w", err)
		}
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses a backend timestamp. Timestamps without a zone are taken
// as UTC; an empty string is the zero time.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// Gateway loads and saves workflow records. Every call is network I/O and
// may fail; callers must leave their editing state untouched on error.
type Gateway interface {
	Create(ctx context.Context, rec Record) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, id int64) (Record, error)
	Update(ctx context.Context, id int64, rec Record) (Record, error)
	Delete(ctx context.Context, id int64) error
}
