package handler

import (
	"net/http"
	"strconv"

	"mentorbridge/backend/internal/apperrors"
	"mentorbridge/backend/internal/models"
	"mentorbridge/backend/internal/rating"

	"github.com/gin-gonic/gin"
)

// ListMentors returns verified mentors by score. Students do not see mentors they already
// swiped on.
func (h *Handler) ListMentors(c *gin.Context) {
	var studentID uint
	if raw := c.Query("studentId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 0)
		if err != nil {
			badRequest(c, "studentId must be a number")
			return
		}
		self, ok := requireSelf(c, uint(id))
		if !ok {
			return
		}
		studentID = self
	} else if currentRole(c) == models.RoleStudent {
		studentID = currentUserID(c)
	}

	mentors, err := h.Storage.ListMentorsForStudent(c.Request.Context(), studentID)
	if err != nil {
		HandleAPIError(c, err)
		return
	}

	out := make([]models.UserSummary, 0, len(mentors))
	for i := range mentors {
		out = append(out, mentors[i].Summary())
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.Storage.GetUserByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type verifyMentorRequest struct {
	UserID uint `json:"userId"`
	rating.Links
	Rating float64 `json:"rating"`
}

func (h *Handler) VerifyMentor(c *gin.Context) {
	var req verifyMentorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed verification request")
		return
	}
	userID, ok := requireSelf(c, req.UserID)
	if !ok {
		return
	}

	score, err := h.Rating.VerifyMentor(c.Request.Context(), userID, req.Links, req.Rating)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification submitted", "systemRating": score})
}

type updateSkillsRequest struct {
	UserID uint     `json:"userId"`
	Skills []string `json:"skills"`
}

func (h *Handler) UpdateSkills(c *gin.Context) {
	var req updateSkillsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Skills == nil {
		badRequest(c, "skills are required")
		return
	}
	userID, ok := requireSelf(c, req.UserID)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user, err := h.Storage.GetUserByID(ctx, userID)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	user.Skills = models.NormalizeSkills(req.Skills)
	if err := h.Storage.UpdateUser(ctx, user); err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Skills updated", "skills": user.Skills})
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 0)
	if err != nil || id == 0 {
		HandleAPIError(c, apperrors.New(apperrors.ErrValidation, name+" must be a positive number"))
		return 0, false
	}
	return uint(id), true
}
