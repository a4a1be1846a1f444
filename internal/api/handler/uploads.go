package handler

import (
	"net/http"

	"mentorbridge/backend/internal/apperrors"

	"github.com/gin-gonic/gin"
)

type uploadRequest struct {
	Kind     string `json:"kind" binding:"required"`
	FileName string `json:"fileName" binding:"required"`
	FileType string `json:"fileType" binding:"required"`
}

func (h *Handler) mediaAvailable(c *gin.Context) bool {
	if h.Media == nil {
		HandleAPIError(c, apperrors.New(apperrors.ErrUnavailable, "file uploads are not configured"))
		return false
	}
	return true
}

// CreateUpload presigns a PUT URL the client uploads the file to directly.
func (h *Handler) CreateUpload(c *gin.Context) {
	if !h.mediaAvailable(c) {
		return
	}
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "kind, fileName and fileType are required")
		return
	}

	upload, err := h.Media.UploadURL(c.Request.Context(), currentUserID(c), req.Kind, req.FileName, req.FileType)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, upload)
}

func (h *Handler) ReadUpload(c *gin.Context) {
	if !h.mediaAvailable(c) {
		return
	}
	url, err := h.Media.ReadURL(c.Request.Context(), c.Query("key"))
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
