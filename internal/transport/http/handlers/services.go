package handlers

import (
	"context"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/usecase"
)

// AdminAuthenticator runs the two-step back-office login.
type AdminAuthenticator interface {
	SignIn(ctx context.Context, input usecase.AdminSignInInput) (*usecase.OTPDispatch, error)
	VerifyLoginOTP(ctx context.Context, email, otp string) (*usecase.AuthResult, error)
}

// Registrar stages and confirms self-service registrations.
type Registrar interface {
	Register(ctx context.Context, input usecase.RegisterInput) (*usecase.OTPDispatch, error)
	Resend(ctx context.Context, role domain.Role, email string) (*usecase.OTPDispatch, error)
	Verify(ctx context.Context, input usecase.VerifyRegistrationInput) (*usecase.RegistrationResult, error)
}

// Authenticator is the single-step user and tutor login.
type Authenticator interface {
	Login(ctx context.Context, input usecase.LoginInput) (*usecase.AuthResult, error)
	Logout(ctx context.Context, accountID, ip string) error
}

// PasswordResetter runs the forgot, verify and reset password flow.
type PasswordResetter interface {
	ForgotPassword(ctx context.Context, role domain.Role, email string) (*usecase.OTPDispatch, error)
	VerifyResetOTP(ctx context.Context, role domain.Role, email, otp string) error
	ResetPassword(ctx context.Context, role domain.Role, email, newPassword string) error
}

// Reviewer applies back-office lifecycle changes.
type Reviewer interface {
	ApproveTutor(ctx context.Context, tutorID, actorID string) (*domain.Account, error)
	ChangeStatus(ctx context.Context, input usecase.ChangeStatusInput) (*domain.Account, error)
}

var (
	_ AdminAuthenticator = (*usecase.AdminAuthService)(nil)
	_ Registrar          = (*usecase.RegistrationService)(nil)
	_ Authenticator      = (*usecase.LoginService)(nil)
	_ PasswordResetter   = (*usecase.PasswordResetService)(nil)
	_ Reviewer           = (*usecase.ReviewService)(nil)
)
