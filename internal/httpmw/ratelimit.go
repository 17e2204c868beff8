package httpmw

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"
)

// Limiter abstracts a rate limiter as HTTP middleware, so a cross-instance
// implementation can substitute without touching callers. It exposes only
// Middleware; there is no per-key allow check. The concrete implementation here
// is backed by github.com/go-chi/httprate (present but unused in the
// teacher's go.mod — wired in here for real).
type Limiter interface {
	Middleware(next http.Handler) http.Handler
}

// RateLimitConfig configures a sliding-window limiter.
type RateLimitConfig struct {
	Enabled       bool
	Max           int
	WindowSeconds int
}

// NewGlobalLimiter builds the global per-client-ip sliding window limiter
// (§4.E step 6), excluding a small set of health/docs paths.
func NewGlobalLimiter(cfg RateLimitConfig, excludePaths []string) Limiter {
	return &httprateLimiter{cfg: cfg, exclude: excludePaths}
}

// NewAuthLimiter builds the per-(client-ip,path) limiter applied to the
// configured auth paths (§4.E step 5).
func NewAuthLimiter(cfg RateLimitConfig, authPaths []string) Limiter {
	return &httprateLimiter{cfg: cfg, onlyPaths: authPaths, keyByPath: true}
}

type httprateLimiter struct {
	cfg       RateLimitConfig
	exclude   []string
	onlyPaths []string
	keyByPath bool
}

func (l *httprateLimiter) Middleware(next http.Handler) http.Handler {
	if !l.cfg.Enabled {
		return next
	}
	maxN := l.cfg.Max
	if maxN <= 0 {
		maxN = 120
	}
	window := l.cfg.WindowSeconds
	if window <= 0 {
		window = 60
	}

	keyFunc := httprate.KeyByIP
	if l.keyByPath {
		keyFunc = func(r *http.Request) (string, error) {
			ip, err := httprate.KeyByIP(r)
			if err != nil {
				return "", err
			}
			return ip + "|" + r.URL.Path, nil
		}
	}

	limited := httprate.Limit(
		maxN,
		time.Duration(window)*time.Second,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(window))
			WriteEnvelope(w, http.StatusTooManyRequests, Envelope{Status: "error", Message: "rate limit exceeded", RequestID: RequestIDFrom(r.Context())})
		}),
	)(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(l.exclude) > 0 {
			for _, p := range l.exclude {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}
		}
		if len(l.onlyPaths) > 0 {
			matched := false
			for _, p := range l.onlyPaths {
				if strings.HasPrefix(r.URL.Path, p) {
					matched = true
					break
				}
			}
			if !matched {
				next.ServeHTTP(w, r)
				return
			}
		}
		limited.ServeHTTP(w, r)
	})
}
