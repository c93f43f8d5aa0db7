package provisioning

import (
	"strings"

	"github.com/platinummonkey/provisioner/pkg/profiles"
)

// Role is the application role stored on the profile row
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAuxiliar Role = "auxiliar"
	RoleUser     Role = "user"

	// DefaultRole is assigned when the request names none
	DefaultRole = RoleAuxiliar
)

// ParseRole validates a requested role; empty selects DefaultRole
func ParseRole(s string) (Role, bool) {
	switch Role(strings.TrimSpace(s)) {
	case "":
		return DefaultRole, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleAuxiliar:
		return RoleAuxiliar, true
	case RoleUser:
		return RoleUser, true
	default:
		return "", false
	}
}

// Request is the body of an admin create-user call
type Request struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	FullName string          `json:"full_name"`
	Role     string          `json:"role"`
	TeamID   profiles.TeamID `json:"team_id"`
}

// Credentials are the caller credentials presented with a request
type Credentials struct {
	// AdminToken is the value of the X-ADMIN-TOKEN header
	AdminToken string
	// BearerToken is the token from "Authorization: Bearer <token>"
	BearerToken string
}

// Result describes a successfully provisioned user
type Result struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// validated is a request that passed validation
type validated struct {
	email    string
	password string
	fullName string
	role     Role
	teamID   profiles.TeamID
}

func validate(req Request) (validated, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return validated{}, NewError(KindBadRequest, "email and password are required", nil)
	}

	role, ok := ParseRole(req.Role)
	if !ok {
		return validated{}, NewError(KindBadRequest, "invalid role: must be one of admin, auxiliar, user", nil)
	}

	return validated{
		email:    email,
		password: req.Password,
		fullName: strings.TrimSpace(req.FullName),
		role:     role,
		teamID:   req.TeamID,
	}, nil
}

// DeriveUsername returns the part of email before the first "@", or the
// whole string when there is none
func DeriveUsername(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
