package handler

import (
	"net/http"

	"mentorbridge/backend/internal/apperrors"
	"mentorbridge/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// ListMessages returns a room's history to one of its two participants. A room without an
// accepted connection is not found.
func (h *Handler) ListMessages(c *gin.Context) {
	roomID := c.Param("roomId")
	ctx := c.Request.Context()

	conn, err := h.Connections.Participants(ctx, roomID)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	if !conn.Involves(currentUserID(c)) {
		HandleAPIError(c, apperrors.New(apperrors.ErrUnauthorized, "not a participant of this room"))
		return
	}

	messages, err := h.Messages.ListByRoom(ctx, roomID)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *Handler) SendMessage(c *gin.Context) {
	var draft models.MessageDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "roomId is required")
		return
	}
	senderID, ok := requireSelf(c, draft.SenderID)
	if !ok {
		return
	}
	draft.SenderID = senderID

	msg, err := h.Messages.Append(c.Request.Context(), senderID, draft)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
