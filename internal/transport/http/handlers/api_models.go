package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/usecase"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error     string     `json:"error"`
	UnlockAt  *time.Time `json:"unlock_at,omitempty"`
	Retryable bool       `json:"retryable,omitempty"`
	TraceID   string     `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: c.GetString("trace_id"),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AdminSignInRequest is the password step of the back-office login.
type AdminSignInRequest struct {
	LoginID  string `json:"login_id"`
	Password string `json:"password"`
}

// VerifyOTPRequest submits an emailed code.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// EmailRequest carries a bare email (resend, forgot password).
type EmailRequest struct {
	Email string `json:"email"`
}

// RegisterRequest is the self-service registration form.
type RegisterRequest struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phone_number"`
}

// LoginRequest is the single-step user or tutor login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetPasswordRequest sets a new password after a verified reset OTP.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
}

// ChangeStatusRequest is an administrative status change.
type ChangeStatusRequest struct {
	Status string `json:"status"`
}

// OTPDispatchResponse acknowledges a mailed code.
type OTPDispatchResponse struct {
	Message   string    `json:"message"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newOTPDispatchResponse(d *usecase.OTPDispatch) OTPDispatchResponse {
	return OTPDispatchResponse{
		Message:   d.Message,
		Email:     d.Email,
		ExpiresAt: d.ExpiresAt.UTC(),
	}
}

// AuthResponse carries a minted bearer token.
type AuthResponse struct {
	Token       string      `json:"token"`
	TokenType   string      `json:"token_type"`
	AccountID   string      `json:"account_id"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
	DisplayName string      `json:"display_name,omitempty"`
}

func newAuthResponse(r *usecase.AuthResult) AuthResponse {
	return AuthResponse{
		Token:       r.Token,
		TokenType:   "Bearer",
		AccountID:   r.AccountID,
		Email:       r.Email,
		Role:        r.Role,
		DisplayName: r.DisplayName,
	}
}

// AccountSummary is the public view of an account. Credentials and lockout counters are
// never serialized.
type AccountSummary struct {
	ID          string               `json:"id"`
	Email       string               `json:"email"`
	PhoneNumber string               `json:"phone_number,omitempty"`
	Role        domain.Role          `json:"role"`
	Status      domain.AccountStatus `json:"status"`
	DisplayName string               `json:"display_name,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

func newAccountSummary(a *domain.Account) AccountSummary {
	return AccountSummary{
		ID:          a.ID,
		Email:       a.Email,
		PhoneNumber: a.PhoneNumber,
		Role:        a.Role,
		Status:      a.Status,
		DisplayName: a.DisplayName,
		CreatedAt:   a.CreatedAt.UTC(),
	}
}

// RegistrationResponse is returned once a registration OTP is verified.
type RegistrationResponse struct {
	Message string         `json:"message"`
	Token   string         `json:"token"`
	Account AccountSummary `json:"account"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports per-dependency readiness.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
