package handler

import (
	"net/http"

	"mentorbridge/backend/internal/connection"
	"mentorbridge/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type swipeRequest struct {
	StudentID uint             `json:"studentId"`
	MentorID  uint             `json:"mentorId" binding:"required"`
	Direction models.Direction `json:"direction" binding:"required"`
}

func (h *Handler) RecordSwipe(c *gin.Context) {
	var req swipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "mentorId and direction are required")
		return
	}
	studentID, ok := requireSelf(c, req.StudentID)
	if !ok {
		return
	}

	created, err := h.Swipes.RecordSwipe(c.Request.Context(), studentID, req.MentorID, req.Direction)
	if err != nil {
		HandleAPIError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"message": "Swipe recorded", "created": created})
}

type connectionRequest struct {
	StudentID uint `json:"studentId"`
	MentorID  uint `json:"mentorId" binding:"required"`
}

func (h *Handler) RequestConnection(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "mentorId is required")
		return
	}
	studentID, ok := requireSelf(c, req.StudentID)
	if !ok {
		return
	}

	conn, created, err := h.Connections.RequestConnection(c.Request.Context(), studentID, req.MentorID)
	if err != nil {
		HandleAPIError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, conn)
}

func (h *Handler) ListPending(c *gin.Context) {
	mentorID, ok := parseIDParam(c, "mentorId")
	if !ok {
		return
	}
	if _, ok := requireSelf(c, mentorID); !ok {
		return
	}
	if !requireRole(c, models.RoleMentor) {
		return
	}

	requests, err := h.Connections.ListPending(c.Request.Context(), mentorID)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

type respondRequest struct {
	ConnectionID uint                `json:"connectionId" binding:"required"`
	Status       connection.Decision `json:"status" binding:"required"`
}

func (h *Handler) RespondConnection(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "connectionId and status are required")
		return
	}

	conn, err := h.Connections.Respond(c.Request.Context(), currentUserID(c), req.ConnectionID, req.Status)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Connection " + string(conn.Status), "connection": conn})
}

func (h *Handler) ListActive(c *gin.Context) {
	userID, ok := parseIDParam(c, "userId")
	if !ok {
		return
	}
	if _, ok := requireSelf(c, userID); !ok {
		return
	}

	active, err := h.Connections.ListActive(c.Request.Context(), userID)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, active)
}
