package handler

import (
	"net/http"

	"mentorbridge/backend/internal/auth"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Signup(c *gin.Context) {
	var in auth.SignupInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "name, email, password and role are required")
		return
	}

	res, err := h.Auth.Signup(c.Request.Context(), in)
	if err != nil {
		HandleAPIError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Signup successful. Please verify OTP.",
		"userId":   res.UserID,
		"debugOtp": res.DebugOTP,
	})
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and otp are required")
		return
	}

	if err := h.Auth.VerifyOTP(c.Request.Context(), req.Email, req.OTP); err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully"})
}

type resendOTPRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResendOTP answers the same way for unknown emails so the route does not reveal accounts.
func (h *Handler) ResendOTP(c *gin.Context) {
	var req resendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email is required")
		return
	}

	code, err := h.Auth.ResendOTP(c.Request.Context(), req.Email)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "If the account exists, a new OTP has been sent.",
		"debugOtp": code,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	res, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		HandleAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": res.Token, "user": res.User})
}
