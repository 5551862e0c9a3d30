package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ubhp-protocol/agenthub/internal/auth"
	"github.com/ubhp-protocol/agenthub/internal/metrics"
)

type contextKey string

const CallerContextKey contextKey = "caller"

// BridgeAuth guards the bridge ingress. A request passes with either a
// valid HS256 bearer token or the configured static API key. When neither a
// JWT secret nor an API key is configured the bridge runs open, matching
// the permissive-by-default environment contract.
type BridgeAuth struct {
	jwtSecret []byte
	apiKey    string
	logger    zerolog.Logger
}

// NewBridgeAuth creates the auth middleware.
func NewBridgeAuth(jwtSecret, apiKey string, logger zerolog.Logger) *BridgeAuth {
	var secret []byte
	if jwtSecret != "" {
		secret = []byte(jwtSecret)
	}
	return &BridgeAuth{jwtSecret: secret, apiKey: apiKey, logger: logger}
}

// Enabled reports whether any credential is configured.
func (a *BridgeAuth) Enabled() bool {
	return len(a.jwtSecret) > 0 || a.apiKey != ""
}

// RequireAuth verifies the request credential and stores the caller
// identity (JWT subject, or "api-key") in the request context.
func (a *BridgeAuth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		if key := r.Header.Get("X-API-Key"); key != "" {
			if a.apiKey != "" && auth.CheckAPIKey(key, a.apiKey) {
				ctx := context.WithValue(r.Context(), CallerContextKey, "api-key")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			a.reject(w, r, "invalid API key")
			return
		}

		if len(a.jwtSecret) > 0 {
			token := bearerToken(r)
			if token == "" {
				a.reject(w, r, "missing credentials")
				return
			}
			claims, err := auth.VerifyHS256(token, a.jwtSecret)
			if err != nil {
				a.reject(w, r, err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), CallerContextKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		a.reject(w, r, "missing credentials")
	})
}

func (a *BridgeAuth) reject(w http.ResponseWriter, r *http.Request, reason string) {
	metrics.BridgeAuthFailures.Inc()
	a.logger.Warn().
		Str("type", "security").
		Str("event", "auth_failure").
		Str("ip", RealIP(r)).
		Str("reason", reason).
		Msg("request rejected")
	jsonError(w, http.StatusUnauthorized, "unauthorized")
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return ""
	}
	return strings.TrimSpace(authz[len(prefix):])
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// CallerFromContext retrieves the authenticated caller identity, or "".
func CallerFromContext(ctx context.Context) string {
	caller, _ := ctx.Value(CallerContextKey).(string)
	return caller
}
