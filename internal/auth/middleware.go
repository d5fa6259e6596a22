// Package auth holds the request identity middleware and the per-user
// Spotify OAuth token broker.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the app session token payload.
type TokenClaims struct {
	UserID      string `json:"uid"`
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

type ctxClaimsKey struct{}

// Identity is the authenticated caller extracted from the session token.
type Identity struct {
	UserID      string
	DisplayName string
}

// FromContext returns the caller identity set by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	claims, ok := ctx.Value(ctxClaimsKey{}).(*TokenClaims)
	if !ok {
		return Identity{}, false
	}
	return Identity{UserID: claims.UserID, DisplayName: claims.DisplayName}, true
}

// Middleware validates the bearer token and stores the claims on the request
// context.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			claims := &TokenClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid || claims.UserID == "" {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxClaimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	// Websocket clients can't set headers; they pass the token as a query
	// parameter instead.
	return r.URL.Query().Get("token")
}
