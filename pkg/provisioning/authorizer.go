package provisioning

import (
	"context"
	"crypto/subtle"

	"github.com/platinummonkey/provisioner/pkg/identity"
	"github.com/platinummonkey/provisioner/pkg/profiles"
)

// Authorizer decides whether a caller may provision users.
//
// Precheck must not perform I/O; it runs before the request body is
// validated. Authorize runs after validation and may call upstream services.
// Both return *Error values of kind unauthorized, forbidden or internal.
type Authorizer interface {
	Precheck(creds Credentials) error
	Authorize(ctx context.Context, creds Credentials) (callerID string, err error)
}

// SharedSecretCaller is the caller id recorded for shared-secret requests
const SharedSecretCaller = "shared-secret"

// SharedSecretAuthorizer admits callers presenting the configured admin token
type SharedSecretAuthorizer struct {
	secret []byte
}

// NewSharedSecretAuthorizer creates an authorizer for secret. An empty secret
// rejects every request.
func NewSharedSecretAuthorizer(secret string) *SharedSecretAuthorizer {
	return &SharedSecretAuthorizer{secret: []byte(secret)}
}

// Precheck compares the presented token in constant time
func (a *SharedSecretAuthorizer) Precheck(creds Credentials) error {
	if len(a.secret) == 0 {
		return NewError(KindUnauthorized, "unauthorized", nil)
	}
	if subtle.ConstantTimeCompare([]byte(creds.AdminToken), a.secret) != 1 {
		return NewError(KindUnauthorized, "unauthorized", nil)
	}
	return nil
}

// Authorize repeats the comparison; there is nothing to look up
func (a *SharedSecretAuthorizer) Authorize(ctx context.Context, creds Credentials) (string, error) {
	if err := a.Precheck(creds); err != nil {
		return "", err
	}
	return SharedSecretCaller, nil
}

// BearerRoleAuthorizer admits callers whose bearer token resolves to a user
// with the admin role on their profile row
type BearerRoleAuthorizer struct {
	resolver identity.TokenResolver
	store    profiles.Store
}

// NewBearerRoleAuthorizer creates a role-checking authorizer
func NewBearerRoleAuthorizer(resolver identity.TokenResolver, store profiles.Store) *BearerRoleAuthorizer {
	return &BearerRoleAuthorizer{resolver: resolver, store: store}
}

// Precheck requires a bearer token to be present
func (a *BearerRoleAuthorizer) Precheck(creds Credentials) error {
	if creds.BearerToken == "" {
		return NewError(KindUnauthorized, "missing bearer token", nil)
	}
	return nil
}

// Authorize resolves the caller and checks the admin role
func (a *BearerRoleAuthorizer) Authorize(ctx context.Context, creds Credentials) (string, error) {
	if err := a.Precheck(creds); err != nil {
		return "", err
	}

	callerID, err := a.resolver.Resolve(ctx, creds.BearerToken)
	if err != nil || callerID == "" {
		return "", NewError(KindUnauthorized, "invalid token", err)
	}

	role, found, err := a.store.GetRole(ctx, callerID)
	if err != nil {
		return callerID, NewError(KindInternal, "could not verify caller role", err)
	}
	if !found || Role(role) != RoleAdmin {
		return callerID, NewError(KindForbidden, "forbidden: admin role required", nil)
	}
	return callerID, nil
}

// OperatorCaller is the caller id recorded for NoAuthorizer requests
const OperatorCaller = "operator"

// NoAuthorizer admits everything. It is meant for the operator CLI, which
// already holds the service key.
type NoAuthorizer struct{}

// Precheck implements Authorizer
func (NoAuthorizer) Precheck(Credentials) error { return nil }

// Authorize implements Authorizer
func (NoAuthorizer) Authorize(context.Context, Credentials) (string, error) {
	return OperatorCaller, nil
}
