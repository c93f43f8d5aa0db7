package profiles

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/platinummonkey/provisioner/pkg/supabase"
)

const (
	profilesPath = "/rest/v1/profiles"
	serviceName  = "rest"

	// uniqueViolation is the SQLSTATE for a duplicate key
	uniqueViolation = "23505"
)

// RESTStore reads and writes profiles through the hosted REST layer
type RESTStore struct {
	client supabase.Doer
}

// NewRESTStore wraps a hosted backend client
func NewRESTStore(client supabase.Doer) *RESTStore {
	return &RESTStore{client: client}
}

type roleRow struct {
	Role *string `json:"rol"`
}

// GetRole selects the rol column of the row with the given id
func (s *RESTStore) GetRole(ctx context.Context, id string) (string, bool, error) {
	var rows []roleRow
	err := s.client.Do(ctx, supabase.Request{
		Service:   serviceName,
		Operation: "select_role",
		Method:    http.MethodGet,
		Path:      profilesPath,
		Query: url.Values{
			"id":     {"eq." + id},
			"select": {"rol"},
		},
	}, &rows)
	if err != nil {
		return "", false, fmt.Errorf("select profile %s: %w", id, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	if rows[0].Role == nil {
		return "", true, nil
	}
	return *rows[0].Role, true, nil
}

// Insert creates a new row
func (s *RESTStore) Insert(ctx context.Context, row Row) error {
	err := s.client.Do(ctx, supabase.Request{
		Service:   serviceName,
		Operation: "insert_profile",
		Method:    http.MethodPost,
		Path:      profilesPath,
		Body:      row,
		Headers:   map[string]string{"Prefer": "return=minimal"},
	}, nil)
	return s.wrapWriteError("insert", row.ID, err)
}

// Upsert creates the row or merges it into an existing one with the same id
func (s *RESTStore) Upsert(ctx context.Context, row Row) error {
	err := s.client.Do(ctx, supabase.Request{
		Service:   serviceName,
		Operation: "upsert_profile",
		Method:    http.MethodPost,
		Path:      profilesPath,
		Query:     url.Values{"on_conflict": {"id"}},
		Body:      row,
		Headers:   map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"},
	}, nil)
	return s.wrapWriteError("upsert", row.ID, err)
}

func (s *RESTStore) wrapWriteError(op, id string, err error) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := supabase.AsAPIError(err); ok && apiErr.Code == uniqueViolation {
		return fmt.Errorf("%s profile %s: %w: %w", op, id, ErrDuplicate, err)
	}
	return fmt.Errorf("%s profile %s: %w", op, id, err)
}
