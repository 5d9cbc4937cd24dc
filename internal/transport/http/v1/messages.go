package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	mw "github.com/velvetlist/concierge/internal/transport/http/middleware"
)

// GetConversationMessages retrieves a page of the caller's conversation.
// GET /v1/conversations/:conversation_id/messages
func (h *Handler) GetConversationMessages(c echo.Context) error {
	conversationID := c.Param("conversation_id")
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}
	before := 0
	if b := c.QueryParam("before"); b != "" {
		if val, err := strconv.Atoi(b); err == nil {
			before = val
		}
	}

	ctx := c.Request().Context()
	messages, err := h.service.GetConversationMessages(ctx, mw.AuthedUserID(c), conversationID, limit, before)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
		"has_more": len(messages) == limit, // Approximate
	})
}
