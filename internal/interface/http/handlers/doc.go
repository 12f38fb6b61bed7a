// Package handlers contains the building blocks the HTTP server is assembled
// from: caller authentication, request validation, health checks and
// reusable middleware.
//
// # Authentication
//
// Interactive clients send a bearer JWT issued by the identity service. The
// token's subject is the user id and its "role" claim one of student, parent
// or admin. Machine callers (the billing system syncing tiers, operators
// triggering a payout) send an integration key in X-API-Key instead:
//
//	auth := handlers.NewAuthenticator(
//	    handlers.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.ClockSkew),
//	    store.Keys(),
//	)
//	protected := auth.Middleware(mux)
//
// Downstream handlers read the caller with ActorFromContext.
//
// # Validation
//
// Request bodies are decoded into structs carrying validator tags:
//
//	var req CreateSessionRequest
//	if err := handlers.DecodeAndValidate(r, &req); err != nil { ... }
//
// Failures come back as shared.ErrInvalidInput domain errors whose details
// name each offending field by its json name.
//
// # Health Checks
//
//	checker := handlers.NewCompositeHealthChecker(cfg.App.Version)
//	checker.AddCheck("postgres", conn.Ping)
//	checker.AddCheck("redis", cache.Ping)
package handlers
