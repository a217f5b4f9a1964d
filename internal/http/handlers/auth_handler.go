// Auth HTTP handlers.
//
// This file exposes the per-user Telegram login endpoints:
//   - GET  /                    (status, never fails)
//   - POST /auth/setup          (configure credentials, forces a new client)
//   - POST /auth/request-code   (send a login code)
//   - POST /auth/sign-in        (complete login)
//   - GET  /auth/me             (authorized account)
//   - POST /auth/logout         (sign out)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/tg-analytics-gateway/internal/http/middleware"
)

//
// DTOs
//

// StatusResponse reports the service and, when a user id is supplied, that
// user's client state.
type StatusResponse struct {
	Status     string `json:"status"     example:"running"`
	Service    string `json:"service"    example:"tg-analytics-gateway"`
	UserID     string `json:"user_id,omitempty" example:"user123"`
	Configured bool   `json:"configured" example:"true"`
	Authorized bool   `json:"authorized" example:"false"`
	State      string `json:"state"      example:"code_requested"`
}

// SetupRequest carries the credentials to configure. Both are required.
type SetupRequest struct {
	CredentialFields
}

// SetupResponse confirms the new client.
type SetupResponse struct {
	Status     string `json:"status"     example:"configured"`
	Authorized bool   `json:"authorized" example:"false"`
}

// RequestCodeRequest is the JSON payload for sending a login code.
type RequestCodeRequest struct {
	CredentialFields
	// Phone in international format; spaces and punctuation are ignored.
	Phone string `json:"phone" example:"+44 7700 900123"`
}

// RequestCodeResponse returns the hash the sign-in call must echo back.
type RequestCodeResponse struct {
	PhoneCodeHash string `json:"phone_code_hash" example:"8a1b2c3d4e5f6a7b8c"`
}

// SignInRequest is the JSON payload for completing a login.
type SignInRequest struct {
	CredentialFields
	Phone         string `json:"phone"           example:"+447700900123"`
	Code          string `json:"code"            example:"12345"`
	PhoneCodeHash string `json:"phone_code_hash" example:"8a1b2c3d4e5f6a7b8c"`
}

// SignInUser is the identity summary returned by sign-in.
type SignInUser struct {
	ID       int64  `json:"id"       example:"777000"`
	Username string `json:"username" example:"analytics_bot_owner"`
}

// SignInResponse is returned after a successful sign-in.
type SignInResponse struct {
	Status string     `json:"status" example:"authenticated"`
	User   SignInUser `json:"user"`
}

// LogoutResponse reports whether there was a session to end.
type LogoutResponse struct {
	Status string `json:"status" example:"logged_out" enums:"logged_out,not_configured"`
}

//
// Handlers
//

// Status godoc
// @ID          status
// @Summary     Service and session status
// @Description Reports whether a Telegram client is configured and authorized for the caller. Never fails, even without a user id.
// @Tags        Auth
// @Produce     json
//
// @Param       X-User-Id  header  string  false  "Caller user id"  example(user123)
// @Param       user_id    query   string  false  "Caller user id (fallback)"
//
// @Success     200  {object}  handlers.StatusResponse
// @Router      / [get]
func (h *Handlers) Status(c *gin.Context) {
	resp := StatusResponse{Status: "running", Service: h.service}
	if uid := middleware.UserIDFrom(c); uid != "" {
		resp.UserID = uid
		resp.Configured, resp.Authorized = h.authSvc.Status(c.Request.Context(), uid)
		resp.State = string(h.authSvc.State(uid))
	}
	if resp.State == "" {
		resp.State = "unauthenticated"
	}
	ok(c, http.StatusOK, resp)
}

// Setup godoc
// @ID          setupCredentials
// @Summary     Configure Telegram credentials
// @Description Discards any client for the caller and builds a new one from api_id/api_hash. Reports whether the stored session is already authorized.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       X-User-Id  header  string                 true  "Caller user id"  example(user123)
// @Param       body       body    handlers.SetupRequest  true  "Credentials"
//
// @Success     200  {object}  handlers.SetupResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing or invalid credentials"
// @Failure     503  {object}  handlers.ErrorResponse  "Could not connect to Telegram"
// @Router      /auth/setup [post]
func (h *Handlers) Setup(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	var req SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	creds, err := req.credentials()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	if creds == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "api_id and api_hash are required")
		return
	}

	authorized, err := h.authSvc.Setup(c.Request.Context(), uid, *creds)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, SetupResponse{Status: "configured", Authorized: authorized})
}

// RequestCode godoc
// @ID          requestCode
// @Summary     Send a login code
// @Description Asks Telegram to send a login code to the phone number and returns the phone_code_hash that sign-in must echo back.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       X-User-Id  header  string                       true  "Caller user id"  example(user123)
// @Param       body       body    handlers.RequestCodeRequest  true  "Phone and optional credentials"
//
// @Success     200  {object}  handlers.RequestCodeResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing phone or credentials"
// @Failure     502  {object}  handlers.ErrorResponse  "Telegram refused to send the code"
// @Failure     503  {object}  handlers.ErrorResponse  "Could not connect to Telegram"
// @Router      /auth/request-code [post]
func (h *Handlers) RequestCode(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	var req RequestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	creds, err := req.credentials()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	hash, err := h.authSvc.RequestCode(c.Request.Context(), uid, req.Phone, creds)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, RequestCodeResponse{PhoneCodeHash: hash})
}

// SignIn godoc
// @ID          signIn
// @Summary     Complete login
// @Description Signs in with the received code and the phone_code_hash from request-code.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       X-User-Id  header  string                  true  "Caller user id"  example(user123)
// @Param       body       body    handlers.SignInRequest  true  "Phone, code and hash"
//
// @Success     200  {object}  handlers.SignInResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing fields or credentials"
// @Failure     401  {object}  handlers.ErrorResponse  "Code rejected, expired or stale hash"
// @Failure     503  {object}  handlers.ErrorResponse  "Could not connect to Telegram"
// @Router      /auth/sign-in [post]
func (h *Handlers) SignIn(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	creds, err := req.credentials()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	id, err := h.authSvc.SignIn(c.Request.Context(), uid, req.Phone, req.Code, strings.TrimSpace(req.PhoneCodeHash), creds)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, SignInResponse{
		Status: "authenticated",
		User:   SignInUser{ID: id.ID, Username: id.Username},
	})
}

// Me godoc
// @ID          me
// @Summary     Current Telegram account
// @Tags        Auth
// @Produce     json
//
// @Param       X-User-Id  header  string  true   "Caller user id"  example(user123)
// @Param       api_id     query   int     false  "Telegram api_id (with api_hash)"
// @Param       api_hash   query   string  false  "Telegram api_hash (with api_id)"
//
// @Success     200  {object}  domain.Identity
// @Failure     400  {object}  handlers.ErrorResponse  "Missing user id or credentials"
// @Failure     401  {object}  handlers.ErrorResponse  "Account not authorized"
// @Failure     503  {object}  handlers.ErrorResponse  "Could not connect to Telegram"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	creds, err := queryCredentials(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	id, err := h.authSvc.CurrentUser(c.Request.Context(), uid, creds)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, id)
}

// Logout godoc
// @ID          logout
// @Summary     Sign out
// @Description Signs the account out and drops its client. Succeeds with not_configured when there was no client.
// @Tags        Auth
// @Produce     json
//
// @Param       X-User-Id  header  string  true  "Caller user id"  example(user123)
//
// @Success     200  {object}  handlers.LogoutResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing user id"
// @Failure     502  {object}  handlers.ErrorResponse  "Sign-out failed (client was still dropped)"
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	had, err := h.authSvc.Logout(c.Request.Context(), uid)
	if err != nil {
		failFromError(c, err)
		return
	}
	status := "logged_out"
	if !had {
		status = "not_configured"
	}
	ok(c, http.StatusOK, LogoutResponse{Status: status})
}
