package v1

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/velvetlist/concierge/internal/domain"
	mw "github.com/velvetlist/concierge/internal/transport/http/middleware"
)

// maxUserMessageLen bounds what the client can hand to the model.
const maxUserMessageLen = 4000

// ProcessMessage handles one concierge turn.
// POST /process-message
func (h *Handler) ProcessMessage(c echo.Context) error {
	var req domain.ProcessMessageRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, domain.NewError(domain.ErrKindValidation, "invalid request body", err))
	}

	// Shape validation must short-circuit before any model or store call.
	if strings.TrimSpace(req.UserMessage) == "" {
		return writeError(c, domain.NewError(domain.ErrKindValidation, "user_message is required", nil))
	}
	if len(req.UserMessage) > maxUserMessageLen {
		return writeError(c, domain.NewError(domain.ErrKindValidation, "user_message exceeds maximum length", nil))
	}
	if req.UserID == "" {
		return writeError(c, domain.NewError(domain.ErrKindValidation, "user_id is required", nil))
	}
	authedUser := mw.AuthedUserID(c)
	if req.UserID != authedUser {
		return writeError(c, domain.NewError(domain.ErrKindAuth, "user_id does not match session", nil))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.requestTimeout)
	defer cancel()

	resp, err := h.service.ProcessMessage(ctx, authedUser, req.ConversationID, req.UserMessage)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
