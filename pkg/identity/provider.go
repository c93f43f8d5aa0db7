package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/platinummonkey/provisioner/pkg/supabase"
)

// ErrInvalidToken is returned when an access token cannot be resolved to a user
var ErrInvalidToken = errors.New("invalid access token")

// User is an identity owned by the identity provider
type User struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Role         string                 `json:"role,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// CreateUserParams describes a new identity
type CreateUserParams struct {
	Email        string
	Password     string
	Metadata     map[string]interface{}
	EmailConfirm bool
}

// Provider is the identity provider surface used by the provisioning workflow
type Provider interface {
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)
	GetUserByToken(ctx context.Context, token string) (*User, error)
	DeleteUser(ctx context.Context, id string) error
}

const serviceName = "auth"

// GoTrueClient talks to the hosted auth server's admin API
type GoTrueClient struct {
	client supabase.Doer
}

// NewGoTrueClient wraps a hosted backend client
func NewGoTrueClient(client supabase.Doer) *GoTrueClient {
	return &GoTrueClient{client: client}
}

type createUserBody struct {
	Email        string                 `json:"email"`
	Password     string                 `json:"password"`
	EmailConfirm bool                   `json:"email_confirm"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// CreateUser creates an identity through the admin API
func (c *GoTrueClient) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	var user User
	err := c.client.Do(ctx, supabase.Request{
		Service:   serviceName,
		Operation: "create_user",
		Method:    http.MethodPost,
		Path:      "/auth/v1/admin/users",
		Body: createUserBody{
			Email:        params.Email,
			Password:     params.Password,
			EmailConfirm: params.EmailConfirm,
			UserMetadata: params.Metadata,
		},
	}, &user)
	if err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("create user: response did not include a user id")
	}
	return &user, nil
}

// GetUserByToken resolves the user that owns an access token
func (c *GoTrueClient) GetUserByToken(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}

	var user User
	err := c.client.Do(ctx, supabase.Request{
		Service:     serviceName,
		Operation:   "get_user",
		Method:      http.MethodGet,
		Path:        "/auth/v1/user",
		BearerToken: token,
	}, &user)
	if err != nil {
		if apiErr, ok := supabase.AsAPIError(err); ok && apiErr.IsClientError() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidToken, apiErr.Error())
		}
		return nil, err
	}
	if user.ID == "" {
		return nil, ErrInvalidToken
	}
	return &user, nil
}

// DeleteUser removes an identity through the admin API
func (c *GoTrueClient) DeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("delete user: id is required")
	}
	return c.client.Do(ctx, supabase.Request{
		Service:   serviceName,
		Operation: "delete_user",
		Method:    http.MethodDelete,
		Path:      "/auth/v1/admin/users/" + url.PathEscape(id),
	}, nil)
}
