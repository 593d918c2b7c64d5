// Package handlers contains HTTP handler interfaces, implementations, and middleware.
//
// This package provides:
//   - Health check interfaces and implementations
//   - API key authentication against stored credentials
//   - Request rate limiting (in-memory and Redis-backed)
//   - Reusable middleware components
//
// # Health Checks
//
// The HealthChecker interface allows registering multiple named health checks
// that are executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("database", handlers.NewDatabaseCheck(db))
//	checker.AddCheck("cache", handlers.NewCacheCheck(cache))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Printf("Health check failed: %s", status.Message)
//	}
//
// # Authentication
//
// APIKeyAuth verifies presented credentials through a KeyVerifier, typically
// backed by the api_keys table. Credentials are presented as "name:secret"
// in the X-API-Key header or as a Bearer token:
//
//	auth := handlers.NewAPIKeyAuth("X-API-Key", keyRepo)
//	submitterOnly := auth.Middleware(false)(myHandler)
//	adminOnly := auth.Middleware(true)(myHandler)
//
// The authenticated Principal is available from the request context via
// PrincipalFromContext.
//
// # Rate Limiting
//
// The RateLimiter interface has two implementations: MemoryRateLimiter for
// single-instance deployments and RedisRateLimiter for sharing a budget
// across replicas:
//
//	limiter := handlers.NewMemoryRateLimiter(120, time.Minute)
//	limited := handlers.RateLimitMiddleware(limiter)(myHandler)
//
// # Best Practices
//
// When implementing health checks:
//   - Use timeouts to prevent slow checks from blocking the response
//   - Include critical dependencies like database and cache
//   - Keep checks fast (< 1 second ideally)
//
// When using middleware:
//   - Apply security middleware early in the chain
//   - Apply authentication before authorization
//   - Use request size limits on write endpoints
package handlers
