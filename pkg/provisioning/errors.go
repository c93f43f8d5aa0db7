package provisioning

import (
	"errors"
	"fmt"
)

// Kind classifies a provisioning failure
type Kind string

const (
	KindMethodNotAllowed     Kind = "method_not_allowed"
	KindBadRequest           Kind = "bad_request"
	KindUnauthorized         Kind = "unauthorized"
	KindForbidden            Kind = "forbidden"
	KindUpstreamCreateFailed Kind = "upstream_create_failed"
	KindProfilePersistFailed Kind = "profile_persist_failed"
	KindInternal             Kind = "internal"
)

// MessageProfilePersistFailed is reported when the identity exists but its
// profile row could not be written
const MessageProfilePersistFailed = "user created but profile failed"

// Error is a classified provisioning failure
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// UpstreamRejected is set on upstream_create_failed when the identity
	// provider refused the request itself (4xx) rather than failing
	UpstreamRejected bool

	// Compensated and UserID describe the identity left behind by a
	// profile_persist_failed error. UserID is only set when the identity
	// could not be removed.
	Compensated bool
	UserID      string
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, internal for unclassified errors
func KindOf(err error) Kind {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Kind
	}
	return KindInternal
}

// AsError unwraps err to an *Error
func AsError(err error) (*Error, bool) {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr, true
	}
	return nil, false
}
