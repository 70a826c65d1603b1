package apperr

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteValidationError(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/upload/request", nil)
	w := httptest.NewRecorder()

	Write(w, r, NewValidation("fileName", "Only .ifc files are supported"))

	assert.Equal(t, 400, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Validation Error", body["error"])
	details := body["details"].([]interface{})
	require.Len(t, details, 1)
}

func TestWriteAppError(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/buildings/nope", nil)
	w := httptest.NewRecorder()

	Write(w, r, NewNotFound("building not found"))

	assert.Equal(t, 404, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "building not found", body["error"])
}

func TestWriteDatabaseErrorDoesNotLeakDetail(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/buildings", nil)
	w := httptest.NewRecorder()

	Write(w, r, &DatabaseError{Op: "query buildings", Err: errors.New("pq: syntax error at or near \"SELEC\"")})

	assert.Equal(t, 500, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["error"])
	assert.NotContains(t, w.Body.String(), "syntax error")
}

func TestDatabaseErrorUnwraps(t *testing.T) {
	inner := errors.New("connection refused")
	wrapped := &DatabaseError{Op: "ping", Err: inner}

	assert.ErrorIs(t, wrapped, inner)
}
