package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore reads and writes profiles directly in Postgres
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an open database handle
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Open connects to dsn with the lib/pq driver and verifies the connection
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open profiles database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping profiles database: %w", err)
	}
	return db, nil
}

// GetRole selects the rol column of the row with the given id
func (s *PostgresStore) GetRole(ctx context.Context, id string) (string, bool, error) {
	var role sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT rol FROM profiles WHERE id = $1`, id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select profile %s: %w", id, err)
	}
	return role.String, true, nil
}

const insertProfile = `INSERT INTO profiles (id, rol, team_id, full_name, username, email, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Insert creates a new row
func (s *PostgresStore) Insert(ctx context.Context, row Row) error {
	_, err := s.db.ExecContext(ctx, insertProfile, rowArgs(row)...)
	return wrapPQError("insert", row.ID, err)
}

// Upsert creates the row or overwrites the one with the same id
func (s *PostgresStore) Upsert(ctx context.Context, row Row) error {
	query := insertProfile + `
		ON CONFLICT (id) DO UPDATE SET
			rol = EXCLUDED.rol,
			team_id = EXCLUDED.team_id,
			full_name = EXCLUDED.full_name,
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = NOW()`
	_, err := s.db.ExecContext(ctx, query, rowArgs(row)...)
	return wrapPQError("upsert", row.ID, err)
}

func rowArgs(row Row) []interface{} {
	var avatar interface{}
	if row.AvatarURL != nil {
		avatar = *row.AvatarURL
	}
	return []interface{}{row.ID, row.Role, row.TeamID, row.FullName, row.Username, row.Email, avatar}
}

func wrapPQError(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%s profile %s: %w: %w", op, id, ErrDuplicate, err)
	}
	return fmt.Errorf("%s profile %s: %w", op, id, err)
}
