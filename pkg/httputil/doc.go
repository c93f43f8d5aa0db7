// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteBadRequest(w, "name and email are required")
//	httputil.WriteMethodNotAllowed(w, http.MethodPost)
//
// Error bodies share one shape:
//
//	{"error": "human readable message", "code": "bad_request"}
//
// # Request Parsing
//
//	var req SubmissionRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	token, ok := httputil.BearerToken(r)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// RequestIDMiddleware must run before LoggingMiddleware so the request id is
// attached to the request-scoped logger.
package httputil
