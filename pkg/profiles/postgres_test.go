package profiles

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresStore(db), mock, db
}

func TestPostgresGetRole(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	query := regexp.QuoteMeta(`SELECT rol FROM profiles WHERE id = $1`)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("A1").
			WillReturnRows(sqlmock.NewRows([]string{"rol"}).AddRow("admin"))

		role, found, err := store.GetRole(context.Background(), "A1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "admin", role)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"rol"}))

		_, found, err := store.GetRole(context.Background(), "missing")
		require.NoError(t, err)
		assert.False(t, found)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("A1").WillReturnError(errors.New("connection reset"))

		_, _, err := store.GetRole(context.Background(), "A1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresInsert(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	row := Row{ID: "U1", Role: "auxiliar", FullName: "New", Username: "new", Email: "new@test.com"}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO profiles \(id, rol, team_id, full_name, username, email, avatar_url\)`).
			WithArgs("U1", "auxiliar", nil, "New", "new", "new@test.com", nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.Insert(context.Background(), row))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO profiles`).
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

		err := store.Insert(context.Background(), row)
		assert.ErrorIs(t, err, ErrDuplicate)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other failure", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO profiles`).WillReturnError(errors.New("disk full"))

		err := store.Insert(context.Background(), row)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicate)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresUpsert(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	avatar := "https://cdn/avatar.png"
	row := Row{ID: "U1", Role: "admin", TeamID: TeamIDFromString("t9"), Username: "a", Email: "a@b.c", AvatarURL: &avatar}

	mock.ExpectExec(`INSERT INTO profiles .* ON CONFLICT \(id\) DO UPDATE SET`).
		WithArgs("U1", "admin", "t9", "", "a", "a@b.c", avatar).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Upsert(context.Background(), row))
	require.NoError(t, mock.ExpectationsWereMet())
}
