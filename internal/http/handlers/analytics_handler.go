// Analytics HTTP handlers.
//
// This file exposes the analytics endpoints:
//   - GET  /analytics             (one message)
//   - POST /analytics/batch       (many messages, partial success)
//   - GET  /analytics/snapshots   (stored last-known metrics, paginated, ETag)
//
// It also declares the service contracts every handler in this package
// depends on, and the Handlers wiring.
package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
	"github.com/tbourn/tg-analytics-gateway/internal/http/middleware"
	"github.com/tbourn/tg-analytics-gateway/internal/repo"
	"github.com/tbourn/tg-analytics-gateway/internal/services"
	"github.com/tbourn/tg-analytics-gateway/internal/utils"
)

//
// Service contracts (context-aware)
//

// AuthService defines the login flow consumed by HTTP handlers.
type AuthService interface {
	// Setup recreates the user's client with new credentials.
	Setup(ctx context.Context, userID string, creds domain.Credentials) (bool, error)
	// RequestCode sends a login code and returns its phone_code_hash.
	RequestCode(ctx context.Context, userID, phone string, creds *domain.Credentials) (string, error)
	// SignIn completes the login with the received code.
	SignIn(ctx context.Context, userID, phone, code, hash string, creds *domain.Credentials) (*domain.Identity, error)
	// CurrentUser returns the authorized account.
	CurrentUser(ctx context.Context, userID string, creds *domain.Credentials) (*domain.Identity, error)
	// Logout signs out; false means there was nothing to do.
	Logout(ctx context.Context, userID string) (bool, error)
	// Status reports whether a client exists and is authorized. Never fails.
	Status(ctx context.Context, userID string) (configured, authorized bool)
	// State returns the user's login state.
	State(userID string) services.AuthState
}

// AnalyticsService defines the message metrics operations.
type AnalyticsService interface {
	FetchOne(ctx context.Context, userID, chatRef string, messageID int, creds *domain.Credentials) (domain.AnalyticsRecord, error)
	FetchBatch(ctx context.Context, userID string, items []services.BatchItem, creds *domain.Credentials) (map[string]domain.AnalyticsRecord, error)
	ListSnapshots(ctx context.Context, userID string, page, pageSize int) ([]domain.AnalyticsSnapshot, int64, error)
}

// DialogService lists the account's conversations.
type DialogService interface {
	List(ctx context.Context, userID string, creds *domain.Credentials, limit int) ([]domain.Dialog, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	authSvc      AuthService
	analyticsSvc AnalyticsService
	dialogSvc    DialogService
	service      string
}

// New constructs Handlers bound to the given services. serviceName is
// reported by the status endpoint.
func New(authSvc AuthService, analyticsSvc AnalyticsService, dialogSvc DialogService, serviceName string) *Handlers {
	return &Handlers{authSvc: authSvc, analyticsSvc: analyticsSvc, dialogSvc: dialogSvc, service: serviceName}
}

// requireUser returns the caller's user id, or aborts with 400 and returns
// "" when none was supplied.
func requireUser(c *gin.Context) string {
	uid := middleware.UserIDFrom(c)
	if uid == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest,
			"user id required: set the "+middleware.HeaderUserID+" header or the "+middleware.QueryUserID+" query parameter")
	}
	return uid
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListSnapshotsResponse wraps a page of snapshots and pagination information.
type ListSnapshotsResponse struct {
	Snapshots  []domain.AnalyticsSnapshot `json:"snapshots"`
	Pagination Pagination                 `json:"pagination"`
}

// BatchResponse maps the decimal message id to its record. Items that were
// malformed, absent or failed are omitted.
type BatchResponse map[string]domain.AnalyticsRecord

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// GetAnalytics godoc
// @ID          getAnalytics
// @Summary     Analytics of one message
// @Description Fetches a message and returns its normalized metrics. chat_id may be a numeric peer id (e.g. -1001234567890) or a channel/group username.
// @Tags        Analytics
// @Produce     json
//
// @Param       X-User-Id   header  string  true   "Caller user id"                   example(user123)
// @Param       chat_id     query   string  true   "Numeric peer id or username"      example(-1001234567890)
// @Param       message_id  query   int     true   "Message id"                       minimum(1) example(5)
// @Param       api_id      query   int     false  "Telegram api_id (with api_hash)"
// @Param       api_hash    query   string  false  "Telegram api_hash (with api_id)"
//
// @Success     200  {object}  domain.AnalyticsRecord
// @Failure     400  {object}  handlers.ErrorResponse  "Missing user, chat_id, message_id or credentials"
// @Failure     401  {object}  handlers.ErrorResponse  "Account not authorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Message or chat not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Platform error"
// @Failure     503  {object}  handlers.ErrorResponse  "Could not connect to Telegram"
// @Router      /analytics [get]
func (h *Handlers) GetAnalytics(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	creds, err := queryCredentials(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	messageID := utils.AtoiDefault(c.Query("message_id"), 0)

	rec, err := h.analyticsSvc.FetchOne(c.Request.Context(), uid, c.Query("chat_id"), messageID, creds)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

// BatchAnalytics godoc
// @ID          batchAnalytics
// @Summary     Analytics of many messages
// @Description Fetches every item over one client and returns a map keyed by message id. The body is either {"api_id", "api_hash", "items": [...]} or a bare [...] item array (credentials then come from the query string); the shape is chosen by the first JSON token. Malformed, missing and failing items are left out; only a failure to obtain an authorized client fails the call.
// @Tags        Analytics
// @Accept      json
// @Produce     json
//
// @Param       X-User-Id  header  string                   true  "Caller user id"  example(user123)
// @Param       body       body    handlers.BatchRequest    true  "Batch request (object form)"
//
// @Success     200  {object}  handlers.BatchResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid body or credentials"
// @Failure     401  {object}  handlers.ErrorResponse  "Account not authorized"
// @Failure     503  {object}  handlers.ErrorResponse  "Could not connect to Telegram"
// @Router      /analytics/batch [post]
func (h *Handlers) BatchAnalytics(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	items, creds, err := decodeBatch(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	out, err := h.analyticsSvc.FetchBatch(c.Request.Context(), uid, items, creds)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, BatchResponse(out))
}

// ListSnapshots godoc
// @ID          listSnapshots
// @Summary     List stored analytics (paginated)
// @Description Returns the last known metrics recorded for the user, most recently updated first. Supports weak ETag via If-None-Match and may return 304. Does not contact Telegram.
// @Tags        Analytics
// @Produce     json
//
// @Param       X-User-Id      header  string  true   "Caller user id"              example(user123)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"snapshots:user123:3:1700000000\")
// @Param       page           query   int     false  "Page number"                 minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListSnapshotsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Missing user id"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /analytics/snapshots [get]
func (h *Handlers) ListSnapshots(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.analyticsSvc.(*services.AnalyticsService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.SnapshotsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"snapshots:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.analyticsSvc.ListSnapshots(ctx, uid, page, pageSize)
	if err != nil {
		failFromError(c, err)
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListSnapshotsResponse{
		Snapshots: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
