// Package identity is the client for the hosted identity provider.
//
// GoTrueClient creates, looks up and deletes identities through the auth
// server's admin API. It is a thin pass-through: no retries, no caching.
//
// TokenResolver turns a caller's bearer token into a user id. Three
// implementations are available:
//
//   - RemoteResolver asks the auth server (GET /auth/v1/user)
//   - HS256Resolver verifies the token locally with the project JWT secret
//   - JWKSResolver verifies the token against the project's JWKS endpoint
package identity
