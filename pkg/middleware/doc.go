// Package middleware provides rate limiting for the admin route.
//
// Two Limiter implementations exist:
//
//	// In-process token bucket per client IP
//	limiter := middleware.NewLocalLimiter(middleware.DefaultRateLimitConfig())
//
//	// Fixed window shared across instances
//	limiter := middleware.NewRedisLimiter(redisClient, cfg, "provisioner:ratelimit")
//
//	router.Use(middleware.RateLimitMiddleware(limiter))
//
// Clients are keyed by RemoteAddr. Limiter errors fail open.
package middleware
