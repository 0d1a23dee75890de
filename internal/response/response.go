// Package response provides shared JSON response helpers for HTTP handlers.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Envelope is the standard API response envelope.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody is the machine-readable error payload carried by failed responses.
type ErrorBody struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Error codes shared across handlers.
const (
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeInvalidCustomID    = "INVALID_CUSTOM_ID"
	CodeIDAlreadyExists    = "ID_ALREADY_EXISTS"
	CodeMissingFile        = "MISSING_FILE"
	CodeFileTooLarge       = "FILE_TOO_LARGE"
	CodeMissingFields      = "MISSING_FIELDS"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeUserExists         = "USER_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidURL         = "INVALID_URL"
	CodeInvalidEvents      = "INVALID_EVENTS"
	CodeInternalError      = "INTERNAL_ERROR"
)

// JSON writes a JSON-encoded payload with the given HTTP status code.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OK writes a 200 response with data.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 response with data.
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, Envelope{Success: true, Data: data})
}

// Fail writes an error response with the given status, code, and message.
func Fail(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message}})
}

// FailWithSuggestions writes an error response carrying alternative values
// the caller may retry with.
func FailWithSuggestions(w http.ResponseWriter, status int, code, message string, suggestions []string) {
	JSON(w, status, Envelope{Success: false, Error: &ErrorBody{
		Code:        code,
		Message:     message,
		Suggestions: suggestions,
	}})
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, code, message string) {
	Fail(w, http.StatusBadRequest, code, message)
}

// Unauthorized writes a 401 response.
func Unauthorized(w http.ResponseWriter, message string) {
	Fail(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, message string) {
	Fail(w, http.StatusNotFound, CodeNotFound, message)
}

// Conflict writes a 409 response.
func Conflict(w http.ResponseWriter, code, message string) {
	Fail(w, http.StatusConflict, code, message)
}

// RateLimited writes a 429 response with the numeric backoff headers
// well-behaved clients key off of.
func RateLimited(w http.ResponseWriter, limit, remaining int, message string) {
	SetRateLimitHeaders(w, limit, remaining)
	Fail(w, http.StatusTooManyRequests, CodeRateLimitExceeded, message)
}

// SetRateLimitHeaders sets X-RateLimit-Limit and X-RateLimit-Remaining.
func SetRateLimitHeaders(w http.ResponseWriter, limit, remaining int) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
}

// InternalError writes a 500 response with a generic message.
func InternalError(w http.ResponseWriter) {
	Fail(w, http.StatusInternalServerError, CodeInternalError, "internal server error")
}
