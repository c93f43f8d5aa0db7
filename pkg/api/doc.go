// Package api provides the HTTP server for the admin provisioning service.
//
// # Overview
//
// The API is built on gorilla/mux. It exposes a single privileged operation,
// creating a user, plus an optional form bridge and the built frontend:
//
//	POST /admin/create-user       Provision an identity and its profile row
//	POST /api/admin/create-user   Alias used by the bundled frontend
//	POST /forms/submissions       Store a contact form post (when configured)
//	GET  /*                       Static frontend (when configured)
//
// Health and metrics endpoints are served on a separate port by
// pkg/observability.
//
// # Authorization
//
// The caller presents either an X-ADMIN-TOKEN header (shared-secret mode) or
// an "Authorization: Bearer <token>" header whose owner must have the admin
// role (bearer-role mode). The mode is chosen when the provisioning.Workflow
// is built; handlers forward both headers unchanged.
//
// # Responses
//
// Success:
//
//	HTTP/1.1 201 Created
//	{"success": true, "user": {"id": "U1", "email": "new@test.com"}}
//
// Failure:
//
//	HTTP/1.1 500 Internal Server Error
//	{"success": false, "error": "user created but profile failed",
//	 "code": "profile_persist_failed", "compensated": true}
//
// Status codes: 400 bad_request (or an identity provider rejection), 401
// unauthorized, 403 forbidden, 405 method_not_allowed, 429 rate_limited, 500
// for upstream, profile and configuration failures.
//
// # Middleware
//
// Every request passes through request id, logging, panic recovery, CORS and
// body size limiting. Matched routes are counted in Prometheus. The admin
// route is additionally rate limited per client address.
//
// # Usage Example
//
//	server := api.NewServer(api.Options{
//		Logger:      logger,
//		Metrics:     metrics,
//		Provisioner: workflow,
//		Limiter:     middleware.NewLocalLimiter(middleware.DefaultRateLimitConfig()),
//	})
//	http.ListenAndServe(":8080", server)
package api
