package httpmw

import (
	"context"
	"net/http"
	"strings"
)

// Verifier validates a bearer token and returns the resolved user id plus
// claim set. Implemented by internal/auth; kept as an interface here so
// the middleware never depends on a concrete auth-provider SDK (§6
// non-goal on pluggable auth providers beyond this interface).
type Verifier interface {
	Verify(ctx context.Context, token string) (userID string, claims map[string]interface{}, err error)
}

// TokenConfig lists which paths are exempt from the token gate (public
// auth endpoints) versus which fall under the API prefix requiring it.
type TokenConfig struct {
	APIPrefix   string
	PublicPaths []string
}

// RequireToken is middleware step 7 (§4.E): validates a bearer token for
// any API path, injecting user_id/claims into request state on success,
// and fails closed with 401 on failure.
func RequireToken(verifier Verifier, cfg TokenConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || !strings.HasPrefix(r.URL.Path, cfg.APIPrefix) {
				next.ServeHTTP(w, r)
				return
			}
			for _, p := range cfg.PublicPaths {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}

			authHeader := r.Header.Get("Authorization")
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader || token == "" {
				WriteEnvelope(w, http.StatusUnauthorized, Envelope{Status: "error", Message: "missing or invalid authorization header", RequestID: RequestIDFrom(r.Context())})
				return
			}

			userID, claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				WriteEnvelope(w, http.StatusUnauthorized, Envelope{Status: "error", Message: "invalid or expired token", RequestID: RequestIDFrom(r.Context())})
				return
			}

			ctx := withUser(r.Context(), UserClaims{UserID: userID, Claims: claims})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
