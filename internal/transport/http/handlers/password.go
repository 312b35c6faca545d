package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ForgotPassword godoc
// @Summary Mail a password reset OTP
// @Tags Password
// @Accept json
// @Produce json
// @Param role path string true "user or tutor"
// @Param request body EmailRequest true "Account email"
// @Success 200 {object} OTPDispatchResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/{role}/password/forgot [post]
func (h *AccountHandler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	dispatch, err := h.reset.ForgotPassword(c.Request.Context(), h.role, req.Email)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOTPDispatchResponse(dispatch))
}

// VerifyResetOTP godoc
// @Summary Verify a password reset OTP
// @Tags Password
// @Accept json
// @Produce json
// @Param role path string true "user or tutor"
// @Param request body VerifyOTPRequest true "Email and OTP"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/{role}/password/verify-otp [post]
func (h *AccountHandler) VerifyResetOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	if err := h.reset.VerifyResetOTP(c.Request.Context(), h.role, req.Email, req.OTP); err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "OTP verified"})
}

// ResetPassword godoc
// @Summary Set a new password after a verified reset OTP
// @Tags Password
// @Accept json
// @Produce json
// @Param role path string true "user or tutor"
// @Param request body ResetPasswordRequest true "New password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/{role}/password/reset [post]
func (h *AccountHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	if err := h.reset.ResetPassword(c.Request.Context(), h.role, req.Email, req.NewPassword); err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "password updated"})
}
