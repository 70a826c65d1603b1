// Package apperr defines the transport-agnostic error kinds handlers return.
// A single function, Write, which handlers call directly, maps these to the
// right HTTP status and JSON body without leaking internal detail for the
// opaque kinds.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
)

// ValidationError reports that the request body or query failed validation.
// It carries the offending fields so the client can fix its request.
type ValidationError struct {
	Details []FieldError
}

// FieldError names one offending input field and why it was rejected.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return "validation error"
}

// NewValidation builds a ValidationError from a single field/message pair.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Details: []FieldError{{Field: field, Message: message}}}
}

// AppError is a domain-level failure with an explicit HTTP status and a
// message that is safe to return to the client verbatim.
type AppError struct {
	StatusCode int
	Message    string
}

func (e *AppError) Error() string {
	return e.Message
}

// New builds an AppError.
func New(statusCode int, message string) *AppError {
	return &AppError{StatusCode: statusCode, Message: message}
}

// NewNotFound is a convenience constructor for the common 404 case.
func NewNotFound(message string) *AppError {
	return &AppError{StatusCode: 404, Message: message}
}

// NewBadRequest is a convenience constructor for the common 400 case.
func NewBadRequest(message string) *AppError {
	return &AppError{StatusCode: 400, Message: message}
}

// CsrfErrorCode identifies why CSRF validation failed.
type CsrfErrorCode string

const (
	CsrfCookieMissing CsrfErrorCode = "CSRF_COOKIE_MISSING"
	CsrfHeaderMissing CsrfErrorCode = "CSRF_HEADER_MISSING"
	CsrfTokenMismatch CsrfErrorCode = "CSRF_TOKEN_MISMATCH"
)

// CsrfError is a 403 with a machine-readable code.
type CsrfError struct {
	Code CsrfErrorCode
}

func (e *CsrfError) Error() string {
	return fmt.Sprintf("csrf error: %s", e.Code)
}

// StorageError wraps an object-storage failure. Never surfaced verbatim.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// BrokerError wraps a broker (Redis/Celery) failure. Never surfaced verbatim.
type BrokerError struct {
	Op  string
	Err error
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("broker %s: %v", e.Op, e.Err)
}

func (e *BrokerError) Unwrap() error { return e.Err }

// DatabaseError wraps a relational-store failure. Never surfaced verbatim.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// Write maps err to the appropriate HTTP status and JSON body. 5xx kinds are
// logged with detail server-side and never leak internals to the client.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *ValidationError
	var appErr *AppError
	var csrfErr *CsrfError
	var storageErr *StorageError
	var brokerErr *BrokerError
	var dbErr *DatabaseError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "Validation Error",
			"details": validationErr.Details,
		})
	case errors.As(err, &appErr):
		writeJSON(w, appErr.StatusCode, map[string]interface{}{"error": appErr.Message})
	case errors.As(err, &csrfErr):
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"error": "CSRF validation failed", "code": csrfErr.Code})
	case errors.As(err, &storageErr):
		log.Printf("%s %s storage error: %v", r.Method, r.URL.Path, storageErr)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "internal server error"})
	case errors.As(err, &brokerErr):
		log.Printf("%s %s broker error: %v", r.Method, r.URL.Path, brokerErr)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "internal server error"})
	case errors.As(err, &dbErr):
		log.Printf("%s %s database error: %v", r.Method, r.URL.Path, dbErr)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "internal server error"})
	default:
		log.Printf("%s %s unhandled error: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
