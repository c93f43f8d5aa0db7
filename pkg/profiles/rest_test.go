package profiles

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/provisioner/pkg/supabase"
)

func newRESTStore(t *testing.T, handler http.HandlerFunc) *RESTStore {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := supabase.NewClient(supabase.Config{URL: server.URL, ServiceKey: "service-key"})
	require.NoError(t, err)
	return NewRESTStore(client)
}

func TestRESTGetRole(t *testing.T) {
	store := newRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/profiles", r.URL.Path)
		assert.Equal(t, "rol", r.URL.Query().Get("select"))

		switch r.URL.Query().Get("id") {
		case "eq.A1":
			w.Write([]byte(`[{"rol":"admin"}]`))
		case "eq.N1":
			w.Write([]byte(`[{"rol":null}]`))
		default:
			w.Write([]byte(`[]`))
		}
	})

	role, found, err := store.GetRole(context.Background(), "A1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "admin", role)

	role, found, err = store.GetRole(context.Background(), "N1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, role)

	_, found, err = store.GetRole(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRESTGetRoleTransportFailure(t *testing.T) {
	store := newRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, _, err := store.GetRole(context.Background(), "A1")
	assert.Error(t, err)
}

func TestRESTInsert(t *testing.T) {
	var prefer string
	var body map[string]interface{}
	store := newRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.URL.Query().Get("on_conflict"))
		prefer = r.Header.Get("Prefer")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
	})

	err := store.Insert(context.Background(), Row{ID: "U1", Role: "auxiliar", Username: "new", Email: "new@test.com"})
	require.NoError(t, err)
	assert.Equal(t, "return=minimal", prefer)
	assert.Equal(t, "U1", body["id"])
	assert.Equal(t, "auxiliar", body["rol"])
	assert.Nil(t, body["avatar_url"])
	assert.Contains(t, body, "avatar_url")
}

func TestRESTInsertDuplicate(t *testing.T) {
	store := newRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint \"profiles_pkey\""}`))
	})

	err := store.Insert(context.Background(), Row{ID: "U1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)

	apiErr, ok := supabase.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestRESTUpsert(t *testing.T) {
	var prefer, onConflict string
	store := newRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		prefer = r.Header.Get("Prefer")
		onConflict = r.URL.Query().Get("on_conflict")
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, store.Upsert(context.Background(), Row{ID: "U1", TeamID: TeamIDFromString("t1")}))
	assert.Equal(t, "resolution=merge-duplicates,return=minimal", prefer)
	assert.Equal(t, "id", onConflict)
}

func TestRESTUpsertFailure(t *testing.T) {
	store := newRESTStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"23514","message":"new row violates check constraint"}`))
	})

	err := store.Upsert(context.Background(), Row{ID: "U1", Role: "root"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "check constraint")
}
