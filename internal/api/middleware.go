package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"vidtube/internal/auth"
	"vidtube/internal/constants"
)

type contextKey string

const userIDKey contextKey = "userID"

type AuthMiddleware struct {
	tokens *auth.TokenService
}

func NewAuthMiddleware(tokens *auth.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth accepts the access token from the accessToken cookie or an
// Authorization bearer header, in that order.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := accessTokenFromRequest(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		claims, err := m.tokens.ValidateAccessToken(token)
		if errors.Is(err, auth.ErrTokenExpired) {
			writeError(w, r, unauthorized("Access token expired"))
			return
		}
		if err != nil {
			writeError(w, r, unauthorized("Invalid access token"))
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessTokenFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(constants.AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", unauthorized("Unauthorized request")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", unauthorized("Invalid authorization header format")
	}

	return strings.TrimSpace(parts[1]), nil
}

func GetUserID(r *http.Request) string {
	if v := r.Context().Value(userIDKey); v != nil {
		if userID, ok := v.(string); ok {
			return userID
		}
	}
	return ""
}

func requireUserID(r *http.Request) (string, error) {
	userID := GetUserID(r)
	if userID == "" {
		return "", unauthorized("Unauthorized request")
	}
	return userID, nil
}
