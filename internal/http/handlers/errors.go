// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes the symbolic error codes returned in the `code` field
// of every error envelope and the single translation from service error kinds
// to HTTP statuses. Clients branch on the code; the message is for humans.
//
// Kind mapping (see failFromError):
//
//	services.ErrConfiguration -> 400 bad_request
//	services.ErrAuth          -> 401 unauthorized
//	services.ErrNotFound      -> 404 not_found
//	services.ErrConnection    -> 503 connection_failed
//	services.ErrPlatform      -> 502 platform_error
//	anything else             -> 500 internal_error
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "unauthorized",
//	  "message": "Telegram account not authorized; sign in first"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/tg-analytics-gateway/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Platform-facing:
	ErrCodeConnectionFailed = "connection_failed"
	ErrCodePlatform         = "platform_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// statusFor maps a service error to its HTTP status and envelope code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.Is(err, services.ErrAuth):
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, services.ErrConnection):
		return http.StatusServiceUnavailable, ErrCodeConnectionFailed
	case errors.Is(err, services.ErrPlatform):
		return http.StatusBadGateway, ErrCodePlatform
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// failFromError aborts with the envelope matching err's kind. Unclassified
// errors are reported as a generic internal error; their text only reaches
// the log.
func failFromError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if code == ErrCodeInternal {
		_ = c.Error(err)
		msg = "internal server error"
	}
	fail(c, status, code, msg)
}
