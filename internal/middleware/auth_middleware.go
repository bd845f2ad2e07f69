package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"offline-cart-sync/pkg/jwt"
	"offline-cart-sync/pkg/response"
)

type contextKey string

const ClientIDKey contextKey = "clientID"

var (
	errNoAuthorization = errors.New("missing authorization header")
	errNotBearer       = errors.New("authorization header must be a bearer token")
)

// bearerToken extracts the token from "Authorization: Bearer <token>". The
// scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errNoAuthorization
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errNotBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errNotBearer
	}
	return token, nil
}

// AuthMiddleware guards the cart backend: only callers holding a token the
// backend issued to a known client get through. The client id is stored on
// the request context.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}

			claims, err := jwt.ValidateToken(token, jwtSecret)
			if err != nil || claims.ClientID == "" {
				response.Unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ClientIDKey, claims.ClientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClientID(r *http.Request) string {
	clientID, ok := r.Context().Value(ClientIDKey).(string)
	if !ok {
		return ""
	}
	return clientID
}
