package httpmw

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// ChainConfig bundles everything needed to assemble the ordered §4.E
// pipeline onto a chi.Router. Order is semantically significant and
// preserved verbatim per spec.md's REDESIGN FLAGS.
type ChainConfig struct {
	APIPrefix        string
	Security         SecurityConfig
	MaxBodyBytes     int64
	AuthRateLimit    RateLimitConfig
	AuthPaths        []string
	GlobalRateLimit  RateLimitConfig
	GlobalExcludes   []string
	Verifier         Verifier
	PublicAuthPaths  []string
	CORS             cors.Options
}

// Apply wires the full chain onto router in the exact order §4.E
// specifies: correlation id, envelope wrap, security headers, body limit,
// auth rate limit, global rate limit, token verification, CORS.
func Apply(router *chi.Mux, cfg ChainConfig) {
	router.Use(Correlation)
	router.Use(EnvelopeWrap(cfg.APIPrefix))
	router.Use(SecurityHeaders(cfg.Security))
	router.Use(BodyLimit(cfg.APIPrefix, cfg.MaxBodyBytes))
	router.Use(NewAuthLimiter(cfg.AuthRateLimit, cfg.AuthPaths).Middleware)
	router.Use(NewGlobalLimiter(cfg.GlobalRateLimit, cfg.GlobalExcludes).Middleware)
	router.Use(RequireToken(cfg.Verifier, TokenConfig{APIPrefix: cfg.APIPrefix, PublicPaths: cfg.PublicAuthPaths}))
	router.Use(cors.Handler(cfg.CORS))
}
