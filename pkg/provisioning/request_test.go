package provisioning

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveUsername(t *testing.T) {
	tests := map[string]string{
		"a.b@example.com": "a.b",
		"x@y":             "x",
		"new@test.com":    "new",
		"no-at-sign":      "no-at-sign",
		"two@at@signs":    "two",
		"@leading":        "",
	}
	for email, want := range tests {
		assert.Equal(t, want, DeriveUsername(email), email)
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{in: "", want: RoleAuxiliar, ok: true},
		{in: "admin", want: RoleAdmin, ok: true},
		{in: "auxiliar", want: RoleAuxiliar, ok: true},
		{in: " user ", want: RoleUser, ok: true},
		{in: "Admin", ok: false},
		{in: "superuser", ok: false},
	}
	for _, tt := range tests {
		role, ok := ParseRole(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, role, tt.in)
	}
}

func TestRequestDecodesTeamID(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"email":"a@b.c","password":"pw","team_id":7}`), &req))
	out, err := json.Marshal(req.TeamID)
	require.NoError(t, err)
	assert.Equal(t, "7", string(out))
}

func TestErrorFormatting(t *testing.T) {
	err := NewError(KindProfilePersistFailed, MessageProfilePersistFailed, errors.New("23505"))
	assert.Equal(t, "profile_persist_failed: user created but profile failed: 23505", err.Error())
	assert.Equal(t, KindProfilePersistFailed, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	plain := NewError(KindBadRequest, "email and password are required", nil)
	assert.Equal(t, "bad_request: email and password are required", plain.Error())
}

func TestSharedSecretAuthorizer(t *testing.T) {
	auth := NewSharedSecretAuthorizer("s3cret")
	assert.NoError(t, auth.Precheck(Credentials{AdminToken: "s3cret"}))
	assert.Equal(t, KindUnauthorized, KindOf(auth.Precheck(Credentials{AdminToken: "s3cre"})))
	assert.Equal(t, KindUnauthorized, KindOf(auth.Precheck(Credentials{})))

	assert.Equal(t, KindUnauthorized, KindOf(NewSharedSecretAuthorizer("").Precheck(Credentials{})))
}
