package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wizlearn/account-service/internal/transport/http/middleware"
	"github.com/wizlearn/account-service/internal/usecase"
)

// AdminHandler exposes the back-office login and account review endpoints.
type AdminHandler struct {
	auth   AdminAuthenticator
	review Reviewer
}

func NewAdminHandler(auth AdminAuthenticator, review Reviewer) *AdminHandler {
	return &AdminHandler{auth: auth, review: review}
}

// SignIn godoc
// @Summary Admin password step
// @Description Verifies the password, applies the lockout policy and mails a login OTP.
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body AdminSignInRequest true "Credentials"
// @Success 200 {object} OTPDispatchResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/admin/auth/sign-in [post]
func (h *AdminHandler) SignIn(c *gin.Context) {
	var req AdminSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	dispatch, err := h.auth.SignIn(c.Request.Context(), usecase.AdminSignInInput{
		LoginID:  req.LoginID,
		Password: req.Password,
		IP:       c.ClientIP(),
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOTPDispatchResponse(dispatch))
}

// VerifyOTP godoc
// @Summary Admin OTP step
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body VerifyOTPRequest true "Emailed code"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/admin/auth/verify-otp [post]
func (h *AdminHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	result, err := h.auth.VerifyLoginOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAuthResponse(result))
}

// ApproveTutor godoc
// @Summary Activate a pending tutor
// @Tags Admin
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Tutor account id"
// @Success 200 {object} AccountSummary
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/admin/tutors/{id}/approve [post]
func (h *AdminHandler) ApproveTutor(c *gin.Context) {
	actorID, _, _ := middleware.AuthenticatedAccount(c)

	account, err := h.review.ApproveTutor(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountSummary(account))
}

// ChangeStatus godoc
// @Summary Change an account status
// @Tags Admin
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param id path string true "Account id"
// @Param request body ChangeStatusRequest true "Target status"
// @Success 200 {object} AccountSummary
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/admin/accounts/{id}/status [patch]
func (h *AdminHandler) ChangeStatus(c *gin.Context) {
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}
	actorID, _, _ := middleware.AuthenticatedAccount(c)

	account, err := h.review.ChangeStatus(c.Request.Context(), usecase.ChangeStatusInput{
		AccountID: c.Param("id"),
		Status:    req.Status,
		ActorID:   actorID,
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountSummary(account))
}
