package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"bazaar-api/internal/engine"
	"bazaar-api/pkg/apierror"
	"bazaar-api/pkg/response"
)

// ActorKey is the context key for the acting identity.
const ActorKey contextKey = "actor"

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// APIKeys accepted in X-API-Key or as a bearer token. Empty keys are ignored;
	// with no keys at all the check is disabled.
	APIKeys []string
}

// NewAuthMiddleware authenticates the host process calling the API.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	var keys [][]byte
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					apiKey = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if apiKey == "" {
				response.Error(w, apierror.Unauthorized("Authentication required. Use the X-API-Key header."))
				return
			}
			if !isValidKey([]byte(apiKey), keys) {
				response.Error(w, apierror.Unauthorized("Invalid API key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isValidKey(key []byte, valid [][]byte) bool {
	for _, v := range valid {
		if subtle.ConstantTimeCompare(key, v) == 1 {
			return true
		}
	}
	return false
}

// Actor reads the identity the host acts for from X-Actor-ID and
// X-Actor-Admin. The host has already evaluated the admin permission.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := engine.Actor{ID: strings.TrimSpace(r.Header.Get("X-Actor-ID"))}
		if v := r.Header.Get("X-Actor-Admin"); v != "" {
			admin, err := strconv.ParseBool(v)
			if err != nil {
				response.Error(w, apierror.BadRequest("X-Actor-Admin must be a boolean"))
				return
			}
			actor.Admin = admin
		}

		ctx := context.WithValue(r.Context(), ActorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFromContext returns the actor set by Actor.
func ActorFromContext(ctx context.Context) (engine.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(engine.Actor)
	return actor, ok
}
