// Package csrf implements double-submit cookie CSRF protection: a random
// token is set as a readable cookie and must be echoed back in a request
// header on every non-safe method against a protected endpoint.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ifcatlas/api/internal/apperr"
)

const (
	cookieName = "csrf_token"
	maxAge     = time.Hour
)

// IssueToken generates a cryptographically random 32-byte token, sets it as
// a non-httpOnly, SameSite=Strict cookie, and returns the token so the
// handler can also place it in the JSON body.
func IssueToken(w http.ResponseWriter, production bool) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: false,
		Secure:   production,
		SameSite: http.SameSiteStrictMode,
	})

	return token, nil
}

// Handler serves GET /csrf-token.
func Handler(production bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := IssueToken(w, production)
		if err != nil {
			apperr.Write(w, r, apperr.New(http.StatusInternalServerError, "internal server error"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"csrfToken": token})
	}
}

// isSafe reports whether method is GET, HEAD or OPTIONS; safe methods never
// require CSRF validation.
func isSafe(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// Protect wraps a handler, requiring the double-submit cookie/header pair
// to match on any non-safe method.
func Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafe(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		if err := Validate(r); err != nil {
			apperr.Write(w, r, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Validate checks the double-submit cookie/header pair for the current
// request, returning a *apperr.CsrfError on failure.
func Validate(r *http.Request) error {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return &apperr.CsrfError{Code: apperr.CsrfCookieMissing}
	}

	header := r.Header.Get("X-CSRF-Token")
	if header == "" {
		header = r.Header.Get("CSRF-Token")
	}
	if header == "" {
		return &apperr.CsrfError{Code: apperr.CsrfHeaderMissing}
	}

	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return &apperr.CsrfError{Code: apperr.CsrfTokenMismatch}
	}

	return nil
}
