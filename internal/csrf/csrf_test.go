package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifcatlas/api/internal/apperr"
)

func TestValidateMissingCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/upload/request", nil)
	r.Header.Set("X-CSRF-Token", "anything")

	err := Validate(r)
	require.Error(t, err)

	var csrfErr *apperr.CsrfError
	require.ErrorAs(t, err, &csrfErr)
	assert.Equal(t, apperr.CsrfCookieMissing, csrfErr.Code)
}

func TestValidateMissingHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/upload/request", nil)
	r.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok"})

	err := Validate(r)
	require.Error(t, err)

	var csrfErr *apperr.CsrfError
	require.ErrorAs(t, err, &csrfErr)
	assert.Equal(t, apperr.CsrfHeaderMissing, csrfErr.Code)
}

func TestValidateMismatch(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/upload/request", nil)
	r.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok-a"})
	r.Header.Set("X-CSRF-Token", "tok-b")

	err := Validate(r)
	require.Error(t, err)

	var csrfErr *apperr.CsrfError
	require.ErrorAs(t, err, &csrfErr)
	assert.Equal(t, apperr.CsrfTokenMismatch, csrfErr.Code)
}

func TestValidateMatchSucceeds(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/upload/request", nil)
	r.AddCookie(&http.Cookie{Name: "csrf_token", Value: "shared-token"})
	r.Header.Set("CSRF-Token", "shared-token")

	assert.NoError(t, Validate(r))
}

func TestIssueTokenSetsCookie(t *testing.T) {
	w := httptest.NewRecorder()

	token, err := IssueToken(w, true)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	resp := w.Result()
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "csrf_token", cookies[0].Name)
	assert.Equal(t, token, cookies[0].Value)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
}

func TestProtectSkipsSafeMethods(t *testing.T) {
	called := false
	h := Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/buildings", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectRejectsUnsafeWithoutToken(t *testing.T) {
	called := false
	h := Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/upload/request", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
