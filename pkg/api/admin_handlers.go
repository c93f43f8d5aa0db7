package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/provisioner/pkg/httputil"
	"github.com/platinummonkey/provisioner/pkg/middleware"
	"github.com/platinummonkey/provisioner/pkg/observability"
	"github.com/platinummonkey/provisioner/pkg/provisioning"
)

// AdminTokenHeader carries the shared admin secret
const AdminTokenHeader = "X-ADMIN-TOKEN"

// Admin route paths. The second is kept for the bundled frontend.
const (
	CreateUserPath      = "/admin/create-user"
	CreateUserAliasPath = "/api/admin/create-user"
)

// Provisioner is the workflow behind the admin route
type Provisioner interface {
	Precheck(ctx context.Context, creds provisioning.Credentials) error
	Provision(ctx context.Context, creds provisioning.Credentials, req provisioning.Request) (*provisioning.Result, error)
}

// AdminHandlers serves the create-user route
type AdminHandlers struct {
	provisioner Provisioner
	configErr   error
	limiter     middleware.Limiter
}

// NewAdminHandlers creates admin handlers. A non-nil configErr makes every
// request fail with 500 so a misconfigured deployment stays up.
func NewAdminHandlers(provisioner Provisioner, configErr error) *AdminHandlers {
	return &AdminHandlers{provisioner: provisioner, configErr: configErr}
}

// WithLimiter rate limits the create-user route
func (h *AdminHandlers) WithLimiter(limiter middleware.Limiter) *AdminHandlers {
	h.limiter = limiter
	return h
}

// RegisterRoutes registers the admin routes. Methods are not filtered by the
// router so that non-POST requests get a JSON 405. Only POST requests count
// against the rate limit.
func (h *AdminHandlers) RegisterRoutes(router *mux.Router) {
	var handler http.Handler = http.HandlerFunc(h.createUser)
	if h.limiter != nil {
		limited := middleware.RateLimitMiddleware(h.limiter)(handler)
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				h.createUser(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
	router.Handle(CreateUserPath, handler)
	router.Handle(CreateUserAliasPath, handler)
}

type createUserResponse struct {
	Success bool                 `json:"success"`
	User    *provisioning.Result `json:"user,omitempty"`
}

type createUserErrorResponse struct {
	Success bool `json:"success"`
	httputil.ErrorResponse
	Compensated *bool  `json:"compensated,omitempty"`
	UserID      string `json:"user_id,omitempty"`
}

// createUser handles POST /admin/create-user
func (h *AdminHandlers) createUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeProvisioningError(w, r, provisioning.NewError(provisioning.KindMethodNotAllowed, "method not allowed", nil))
		return
	}

	if h.configErr != nil || h.provisioner == nil {
		log := observability.FromContext(r.Context())
		if h.configErr != nil {
			log = log.WithError(h.configErr)
		}
		log.Error("create-user called but the service is not configured")
		writeProvisioningError(w, r, provisioning.NewError(provisioning.KindInternal, "server configuration error", h.configErr))
		return
	}

	creds := provisioning.Credentials{AdminToken: r.Header.Get(AdminTokenHeader)}
	creds.BearerToken, _ = httputil.BearerToken(r)

	var req provisioning.Request
	if err := httputil.ParseJSON(r, &req); err != nil {
		if authErr := h.provisioner.Precheck(r.Context(), creds); authErr != nil {
			writeProvisioningError(w, r, authErr)
			return
		}
		writeProvisioningError(w, r, provisioning.NewError(provisioning.KindBadRequest, err.Error(), err))
		return
	}

	result, err := h.provisioner.Provision(r.Context(), creds, req)
	if err != nil {
		writeProvisioningError(w, r, err)
		return
	}

	httputil.WriteCreated(w, createUserResponse{Success: true, User: result})
}

// statusFor maps a workflow error to its HTTP status
func statusFor(provErr *provisioning.Error) int {
	switch provErr.Kind {
	case provisioning.KindBadRequest:
		return http.StatusBadRequest
	case provisioning.KindUnauthorized:
		return http.StatusUnauthorized
	case provisioning.KindForbidden:
		return http.StatusForbidden
	case provisioning.KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case provisioning.KindUpstreamCreateFailed:
		if provErr.UpstreamRejected {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeProvisioningError is the single place workflow errors become HTTP
// responses
func writeProvisioningError(w http.ResponseWriter, r *http.Request, err error) {
	provErr, ok := provisioning.AsError(err)
	if !ok {
		observability.FromContext(r.Context()).WithError(err).Error("unclassified provisioning error")
		provErr = provisioning.NewError(provisioning.KindInternal, httputil.InternalErrorMessage(err.Error()), err)
	}

	resp := createUserErrorResponse{
		ErrorResponse: httputil.ErrorResponse{
			Error: provErr.Message,
			Code:  string(provErr.Kind),
		},
	}
	if provErr.Kind == provisioning.KindProfilePersistFailed {
		compensated := provErr.Compensated
		resp.Compensated = &compensated
		resp.UserID = provErr.UserID
	}

	httputil.WriteJSON(w, statusFor(provErr), resp)
}
