package profiles

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicate is returned by Insert when a row with the same id exists
var ErrDuplicate = errors.New("profile already exists")

// Row is one entry of the profiles table. The role column is named "rol".
type Row struct {
	ID        string  `json:"id"`
	Role      string  `json:"rol"`
	TeamID    TeamID  `json:"team_id"`
	FullName  string  `json:"full_name"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatar_url"`
}

// Store reads and writes profile rows
type Store interface {
	// GetRole returns the rol column for id; found is false when no row exists
	GetRole(ctx context.Context, id string) (role string, found bool, err error)
	// Insert fails with ErrDuplicate when the id already exists
	Insert(ctx context.Context, row Row) error
	// Upsert overwrites an existing row with the same id
	Upsert(ctx context.Context, row Row) error
}

// WriteMode selects how the provisioning workflow persists a new row
type WriteMode string

const (
	WriteUpsert WriteMode = "upsert"
	WriteInsert WriteMode = "insert"
)

// ParseWriteMode parses a configured write mode, defaulting to upsert
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", WriteUpsert:
		return WriteUpsert, nil
	case WriteInsert:
		return WriteInsert, nil
	default:
		return "", fmt.Errorf("unknown profile write mode %q", s)
	}
}

// Write persists row using mode
func Write(ctx context.Context, store Store, mode WriteMode, row Row) error {
	if mode == WriteInsert {
		return store.Insert(ctx, row)
	}
	return store.Upsert(ctx, row)
}

// TeamID is an optional team identifier that keeps the JSON type it arrived
// with: a string, a number or null.
type TeamID struct {
	raw json.RawMessage
}

// TeamIDFromString builds a string team id; an empty string is null
func TeamIDFromString(s string) TeamID {
	if s == "" {
		return TeamID{}
	}
	raw, _ := json.Marshal(s)
	return TeamID{raw: raw}
}

// IsNull reports whether no team id was given
func (t TeamID) IsNull() bool {
	return len(t.raw) == 0
}

// String returns the identifier without JSON quoting, "" when null
func (t TeamID) String() string {
	if t.IsNull() {
		return ""
	}
	var s string
	if err := json.Unmarshal(t.raw, &s); err == nil {
		return s
	}
	return string(t.raw)
}

// MarshalJSON implements json.Marshaler
func (t TeamID) MarshalJSON() ([]byte, error) {
	if t.IsNull() {
		return []byte("null"), nil
	}
	return t.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (t *TeamID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		t.raw = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("team_id: %w", err)
	}
	switch v.(type) {
	case string, json.Number:
		t.raw = append(json.RawMessage(nil), trimmed...)
		return nil
	default:
		return errors.New("team_id must be a string, a number or null")
	}
}

// Value implements driver.Valuer; the column stores the identifier as text
func (t TeamID) Value() (driver.Value, error) {
	if t.IsNull() {
		return nil, nil
	}
	return t.String(), nil
}
