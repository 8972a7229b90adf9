package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/solara-labs/mint-reservation/internal/config"
	"github.com/solara-labs/mint-reservation/internal/handler"    // import the handlers that implement business logic
	"github.com/solara-labs/mint-reservation/internal/middleware" // import middleware for rate limiting, caching and admin auth
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterMint registers the reservation protocol endpoints under /v1.
// These are the write paths of the service, so the Redis token-bucket
// rate limiter is applied to the whole group when a Redis client is
// available.  Purchase reserves a slot, refresh-lock extends an active
// reservation, and complete finalizes it after payment.
func RegisterMint(e *echo.Echo, m *handler.MintHandler, rdb *redis.Client) {
	g := e.Group("/v1")
	if rdb != nil {
		// Rate limiting keys on wallet-less client identity (IP) for these
		// routes; the limiter config is read from the environment.
		g.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	}
	// Reserve a random available slot and return the unsigned payment tx.
	g.POST("/purchase", m.Purchase)
	// Extend the lease on a held slot while the buyer's wallet UI is open.
	g.POST("/refresh-lock", m.RefreshLock)
	// Verify the payment on chain, mint the token and finalize the slot.
	g.POST("/complete", m.CompleteMint)
}

// RegisterInfo registers the read-only supply endpoints.  Responses are
// served through the Redis response cache when available since price and
// counts change rarely relative to how often storefront pages poll them.
func RegisterInfo(e *echo.Echo, i *handler.InfoHandler, rdb *redis.Client) {
	g := e.Group("/v1/mint")
	if rdb != nil {
		g.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	}
	// Current mint price in lamports and SOL.
	g.GET("/price", i.GetMintPrice)
	// Slot counts by status (minted, available, pending, failed).
	g.GET("/count", i.GetMintedCount)
}

// RegisterRefunds registers the public refund-request endpoint.  It shares
// the rate limiter with the mint group because it is also a write path
// reachable by anyone.
func RegisterRefunds(e *echo.Echo, r *handler.RefundHandler, rdb *redis.Client) {
	g := e.Group("/v1/refunds")
	if rdb != nil {
		g.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	}
	// File a refund request against a completed mint.
	g.POST("", r.RequestRefund)
}

// RegisterAdmin registers the operator endpoints.  Login lives under
// /v1/auth and issues the ADMIN token; the inspection endpoints live
// under /v1/admin behind the AdminAuth middleware.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	// Unauthenticated login endpoint that exchanges credentials for a token.
	e.POST("/v1/auth/admin-login", a.Login)

	// All routes in this group require a valid Bearer token with the ADMIN
	// role claim.
	g := e.Group("/v1/admin")
	g.Use(middleware.AdminAuth(jwtSecret))
	// Inspect the refund queue, optionally filtered by ?status=.
	g.GET("/refunds", a.ListRefunds)
	// Slot counts per status for operational dashboards.
	g.GET("/slots/stats", a.SlotStats)
}
