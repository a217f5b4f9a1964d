package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/tg-analytics-gateway/internal/utils"
)

// ListDialogs godoc
// @ID          listDialogs
// @Summary     List conversations
// @Description Returns the users, groups and channels visible to the authorized account, in Telegram's order.
// @Tags        Dialogs
// @Produce     json
//
// @Param       X-User-Id  header  string  true   "Caller user id"  example(user123)
// @Param       limit      query   int     false  "Maximum dialogs to return"  minimum(1)
// @Param       api_id     query   int     false  "Telegram api_id (with api_hash)"
// @Param       api_hash   query   string  false  "Telegram api_hash (with api_id)"
//
// @Success     200  {array}   domain.Dialog
// @Failure     400  {object}  handlers.ErrorResponse  "Missing user id or credentials"
// @Failure     401  {object}  handlers.ErrorResponse  "Account not authorized"
// @Failure     502  {object}  handlers.ErrorResponse  "Platform error"
// @Failure     503  {object}  handlers.ErrorResponse  "Could not connect to Telegram"
// @Router      /dialogs [get]
func (h *Handlers) ListDialogs(c *gin.Context) {
	uid := requireUser(c)
	if uid == "" {
		return
	}
	creds, err := queryCredentials(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	dialogs, err := h.dialogSvc.List(c.Request.Context(), uid, creds, utils.AtoiDefault(c.Query("limit"), 0))
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, dialogs)
}
