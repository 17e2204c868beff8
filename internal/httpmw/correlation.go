package httpmw

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "request_id"
const userContextKey contextKey = "user_context"

// CorrelationHeader is the inbound/outbound request-id header (§6).
const CorrelationHeader = "X-Request-ID"

// Correlation is middleware step 1 (§4.E): honors an inbound X-Request-ID
// or mints a fresh one, attaching it to request state and the response.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(CorrelationHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom reads the correlation id stashed by Correlation.
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// UserClaims is the verified identity injected by the auth middleware.
type UserClaims struct {
	UserID string
	Claims map[string]interface{}
}

// UserFrom reads the verified claims injected by RequireToken.
func UserFrom(ctx context.Context) (UserClaims, bool) {
	u, ok := ctx.Value(userContextKey).(UserClaims)
	return u, ok
}

func withUser(ctx context.Context, u UserClaims) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}
