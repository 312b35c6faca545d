package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/transport/http/middleware"
	"github.com/wizlearn/account-service/internal/usecase"
)

// AccountHandler serves the self-service endpoints of one role (user or tutor).
type AccountHandler struct {
	role         domain.Role
	registration Registrar
	login        Authenticator
	reset        PasswordResetter
}

// NewAccountHandler binds the registration, login and password endpoints to role.
func NewAccountHandler(role domain.Role, registration Registrar, login Authenticator, reset PasswordResetter) *AccountHandler {
	return &AccountHandler{
		role:         role,
		registration: registration,
		login:        login,
		reset:        reset,
	}
}

// Register godoc
// @Summary Stage a registration and mail an OTP
// @Tags Accounts
// @Accept json
// @Produce json
// @Param role path string true "user or tutor"
// @Param request body RegisterRequest true "Registration form"
// @Success 202 {object} OTPDispatchResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/{role}/register [post]
func (h *AccountHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	dispatch, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Role:        h.role,
		Email:       req.Email,
		Name:        req.Name,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, newOTPDispatchResponse(dispatch))
}

// ResendRegistrationOTP godoc
// @Summary Re-send the registration OTP for a pending sign-up
// @Tags Accounts
// @Accept json
// @Produce json
// @Param role path string true "user or tutor"
// @Param request body EmailRequest true "Pending account email"
// @Success 200 {object} OTPDispatchResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/{role}/register/resend [post]
func (h *AccountHandler) ResendRegistrationOTP(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	dispatch, err := h.registration.Resend(c.Request.Context(), h.role, req.Email)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOTPDispatchResponse(dispatch))
}

// VerifyRegistration godoc
// @Summary Confirm a registration OTP and create the account
// @Tags Accounts
// @Accept json
// @Produce json
// @Param role path string true "user or tutor"
// @Param request body VerifyOTPRequest true "Emailed code"
// @Success 201 {object} RegistrationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/{role}/register/verify [post]
func (h *AccountHandler) VerifyRegistration(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	result, err := h.registration.Verify(c.Request.Context(), usecase.VerifyRegistrationInput{
		Role:  h.role,
		Email: req.Email,
		OTP:   req.OTP,
		IP:    c.ClientIP(),
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, RegistrationResponse{
		Message: result.Message,
		Token:   result.Token,
		Account: newAccountSummary(result.Account),
	})
}

// Login godoc
// @Summary Password login
// @Tags Accounts
// @Accept json
// @Produce json
// @Param role path string true "user or tutor"
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/{role}/login [post]
func (h *AccountHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidPayload(c)
		return
	}

	result, err := h.login.Login(c.Request.Context(), usecase.LoginInput{
		Role:     h.role,
		Email:    req.Email,
		Password: req.Password,
		IP:       c.ClientIP(),
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAuthResponse(result))
}

// Logout records a logout entry for the bearer. Tokens are stateless and expire on their own.
func (h *AccountHandler) Logout(c *gin.Context) {
	accountID, _, _ := middleware.AuthenticatedAccount(c)
	if err := h.login.Logout(c.Request.Context(), accountID, c.ClientIP()); err != nil {
		RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}
