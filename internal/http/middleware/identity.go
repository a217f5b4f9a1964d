// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the tenant a request acts for. Every user-scoped route
// is keyed by an opaque caller-supplied identifier, read from the X-User-Id
// header or, failing that, the user_id query parameter. The identifier is
// never generated here.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/tg-analytics-gateway/internal/sysutil"
)

const (
	// HeaderUserID carries the caller's user identifier.
	HeaderUserID = "X-User-Id"
	// QueryUserID is the query fallback for HeaderUserID.
	QueryUserID = "user_id"
	// ctxKeyUserID is the Gin context key shared with the rate limiter and
	// the access logger.
	ctxKeyUserID = "userID"

	maxUserIDLen = 128
)

// UserID stores the caller's identifier in the Gin context when one is
// supplied. Requests without one pass through; handlers that need a user
// reject them.
func UserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := extractUserID(c); uid != "" {
			c.Set(ctxKeyUserID, uid)
		}
		c.Next()
	}
}

// UserIDFrom returns the identifier stored by UserID, or extracts it from the
// request when the middleware did not run. It returns "" when none was
// supplied.
func UserIDFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return extractUserID(c)
}

func extractUserID(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return ""
	}
	uid := strings.TrimSpace(sysutil.FirstNonEmpty(c.GetHeader(HeaderUserID), c.Query(QueryUserID)))
	if len(uid) > maxUserIDLen {
		return ""
	}
	return uid
}
