package auth

import (
	"net/http"
	"strings"
)

// TokenFromRequest extracts a bearer token from the query string, the
// Authorization header or the "token" cookie, in that order.
func TokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}

	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}

	if cookie, err := r.Cookie("token"); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
