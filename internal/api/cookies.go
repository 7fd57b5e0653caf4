package api

import (
	"net/http"
	"time"

	"vidtube/internal/auth"
	"vidtube/internal/constants"
)

type cookieConfig struct {
	secure bool
}

func (c cookieConfig) setAuthCookies(w http.ResponseWriter, pair *auth.TokenPair) {
	now := time.Now()
	http.SetCookie(w, c.cookie(constants.AccessTokenCookie, pair.AccessToken, pair.AccessExpiresAt.Sub(now)))
	http.SetCookie(w, c.cookie(constants.RefreshTokenCookie, pair.RefreshToken, pair.RefreshExpiresAt.Sub(now)))
}

func (c cookieConfig) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{constants.AccessTokenCookie, constants.RefreshTokenCookie} {
		cookie := c.cookie(name, "", 0)
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		http.SetCookie(w, cookie)
	}
}

func (c cookieConfig) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
