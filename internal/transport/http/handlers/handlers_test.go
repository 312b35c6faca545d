package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/transport/http/middleware"
	"github.com/wizlearn/account-service/internal/usecase"
)

var expiresAt = time.Date(2026, 3, 14, 9, 2, 0, 0, time.UTC)

type stubAdmin struct {
	signInInput usecase.AdminSignInInput
	signInErr   error
	verifyErr   error
}

func (s *stubAdmin) SignIn(_ context.Context, input usecase.AdminSignInInput) (*usecase.OTPDispatch, error) {
	s.signInInput = input
	if s.signInErr != nil {
		return nil, s.signInErr
	}
	return &usecase.OTPDispatch{Message: "OTP sent to your email", Email: input.LoginID, ExpiresAt: expiresAt}, nil
}

func (s *stubAdmin) VerifyLoginOTP(_ context.Context, email, otp string) (*usecase.AuthResult, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return &usecase.AuthResult{Token: "token-admin", AccountID: "admin-1", Email: email, Role: domain.RoleAdmin}, nil
}

type stubReviewer struct {
	actorID string
	input   usecase.ChangeStatusInput
	err     error
}

func (s *stubReviewer) ApproveTutor(_ context.Context, tutorID, actorID string) (*domain.Account, error) {
	s.actorID = actorID
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Account{ID: tutorID, Role: domain.RoleTutor, Status: domain.AccountStatusActive}, nil
}

func (s *stubReviewer) ChangeStatus(_ context.Context, input usecase.ChangeStatusInput) (*domain.Account, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Account{ID: input.AccountID, Status: domain.AccountStatus(input.Status)}, nil
}

type stubAccounts struct {
	registered usecase.RegisterInput
	verified   usecase.VerifyRegistrationInput
	login      usecase.LoginInput
	logoutID   string
	resetRole  domain.Role
	err        error
}

func (s *stubAccounts) Register(_ context.Context, input usecase.RegisterInput) (*usecase.OTPDispatch, error) {
	s.registered = input
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.OTPDispatch{Message: "OTP sent to your email", Email: input.Email, ExpiresAt: expiresAt}, nil
}

func (s *stubAccounts) Resend(_ context.Context, _ domain.Role, email string) (*usecase.OTPDispatch, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.OTPDispatch{Message: "OTP sent to your email", Email: email, ExpiresAt: expiresAt}, nil
}

func (s *stubAccounts) Verify(_ context.Context, input usecase.VerifyRegistrationInput) (*usecase.RegistrationResult, error) {
	s.verified = input
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.RegistrationResult{
		Account: &domain.Account{ID: "tutor-1", Email: input.Email, Role: input.Role, Status: domain.AccountStatusPending, PasswordHash: "secret-hash"},
		Token:   "token-tutor-1",
		Message: "Registration successful. Your tutor account is pending admin approval.",
	}, nil
}

func (s *stubAccounts) Login(_ context.Context, input usecase.LoginInput) (*usecase.AuthResult, error) {
	s.login = input
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.AuthResult{Token: "token-user-1", AccountID: "user-1", Email: input.Email, Role: input.Role, DisplayName: "Alice"}, nil
}

func (s *stubAccounts) Logout(_ context.Context, accountID, _ string) error {
	s.logoutID = accountID
	return s.err
}

func (s *stubAccounts) ForgotPassword(_ context.Context, role domain.Role, email string) (*usecase.OTPDispatch, error) {
	s.resetRole = role
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.OTPDispatch{Message: "OTP sent to your email", Email: email, ExpiresAt: expiresAt}, nil
}

func (s *stubAccounts) VerifyResetOTP(_ context.Context, role domain.Role, _, _ string) error {
	s.resetRole = role
	return s.err
}

func (s *stubAccounts) ResetPassword(_ context.Context, role domain.Role, _, _ string) error {
	s.resetRole = role
	return s.err
}

func postJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.20:40000"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rr.Body.String())
	}
	return resp
}

func withAccount(id string, role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.AccountIDKey, id)
		c.Set(middleware.RoleKey, role)
		c.Next()
	}
}

func TestRespondWithErrorMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	unlockAt := time.Date(2026, 3, 14, 9, 10, 0, 0, time.UTC)
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{usecase.ErrAccountNotFound, http.StatusNotFound, "account not found"},
		{usecase.ErrEmailTaken, http.StatusConflict, "email already registered"},
		{usecase.ErrAccountPendingApproval, http.StatusUnauthorized, "account pending approval"},
		{usecase.ErrOTPInvalid, http.StatusBadRequest, "invalid OTP"},
		{&usecase.AccountLockedError{UnlockAt: unlockAt}, http.StatusUnauthorized, "account is locked until 2026-03-14T09:10:00Z"},
		{&usecase.DeliveryError{Purpose: domain.PurposeAdminLogin, Err: errors.New("smtp 421")}, http.StatusBadRequest, "failed to send email, try again"},
		{fmt.Errorf("find account: %w", errors.New("connection reset")), http.StatusInternalServerError, internalErrorMessage},
	}

	for _, tc := range cases {
		router := gin.New()
		var attached int
		router.GET("/", func(c *gin.Context) {
			RespondWithError(c, tc.err)
			attached = len(c.Errors)
		})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
		resp := decodeError(t, rr)
		if resp.Error != tc.message {
			t.Fatalf("%v: expected copy %q, got %q", tc.err, tc.message, resp.Error)
		}
		switch usecase.KindOf(tc.err) {
		case usecase.KindEmailDeliveryFailed:
			if !resp.Retryable || attached != 1 {
				t.Fatalf("delivery failure must be retryable and attached, got %+v attached=%d", resp, attached)
			}
		case usecase.KindInternal:
			if attached != 1 {
				t.Fatalf("internal error must be attached to the context")
			}
		default:
			if attached != 0 || resp.Retryable {
				t.Fatalf("%v: client errors must not be attached or retryable", tc.err)
			}
		}
		if _, locked := tc.err.(*usecase.AccountLockedError); locked {
			if resp.UnlockAt == nil || !resp.UnlockAt.Equal(unlockAt) {
				t.Fatalf("expected unlock_at, got %+v", resp.UnlockAt)
			}
		}
	}
}

func TestAdminSignInPassesClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	admin := &stubAdmin{}
	h := NewAdminHandler(admin, &stubReviewer{})
	router := gin.New()
	router.POST("/sign-in", h.SignIn)

	rr := postJSON(router, http.MethodPost, "/sign-in", AdminSignInRequest{LoginID: "admin@wizlearn.io", Password: "pw"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if admin.signInInput.IP != "198.51.100.20" {
		t.Fatalf("expected client ip forwarded, got %q", admin.signInInput.IP)
	}
	var resp OTPDispatchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != "OTP sent to your email" || !resp.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("unexpected dispatch %+v", resp)
	}
}

func TestAdminSignInRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/sign-in", NewAdminHandler(&stubAdmin{}, nil).SignIn)

	if rr := postJSON(router, http.MethodPost, "/sign-in", "{not json"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAdminVerifyOTPReturnsToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/verify", NewAdminHandler(&stubAdmin{}, nil).VerifyOTP)

	rr := postJSON(router, http.MethodPost, "/verify", VerifyOTPRequest{Email: "admin@wizlearn.io", OTP: "482913"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp AuthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token != "token-admin" || resp.Role != domain.RoleAdmin || resp.TokenType != "Bearer" {
		t.Fatalf("unexpected auth response %+v", resp)
	}
}

func TestApproveTutorUsesActorFromToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	review := &stubReviewer{}
	router := gin.New()
	router.POST("/tutors/:id/approve", withAccount("staff-1", domain.RoleStaff), NewAdminHandler(nil, review).ApproveTutor)

	rr := postJSON(router, http.MethodPost, "/tutors/tutor-9/approve", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if review.actorID != "staff-1" {
		t.Fatalf("expected actor from token, got %q", review.actorID)
	}

	review.err = usecase.ErrInvalidStatusTransition
	if rr := postJSON(router, http.MethodPost, "/tutors/tutor-9/approve", ""); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestChangeStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	review := &stubReviewer{}
	router := gin.New()
	router.PATCH("/accounts/:id/status", withAccount("admin-1", domain.RoleAdmin), NewAdminHandler(nil, review).ChangeStatus)

	rr := postJSON(router, http.MethodPatch, "/accounts/user-3/status", ChangeStatusRequest{Status: "SUSPENDED"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if review.input.AccountID != "user-3" || review.input.Status != "SUSPENDED" || review.input.ActorID != "admin-1" {
		t.Fatalf("unexpected input %+v", review.input)
	}
}

func TestAccountHandlerBindsRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	accounts := &stubAccounts{}
	h := NewAccountHandler(domain.RoleTutor, accounts, accounts, accounts)
	router := gin.New()
	router.POST("/register", h.Register)
	router.POST("/register/verify", h.VerifyRegistration)
	router.POST("/password/forgot", h.ForgotPassword)

	rr := postJSON(router, http.MethodPost, "/register", RegisterRequest{Email: "tom@example.com", Name: "Tom", Password: "pw", PhoneNumber: "+15550100"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	if accounts.registered.Role != domain.RoleTutor || accounts.registered.PhoneNumber != "+15550100" {
		t.Fatalf("unexpected register input %+v", accounts.registered)
	}

	rr = postJSON(router, http.MethodPost, "/register/verify", VerifyOTPRequest{Email: "tom@example.com", OTP: "111111"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if bytes.Contains(rr.Body.Bytes(), []byte("secret-hash")) {
		t.Fatalf("password hash must never be serialized")
	}
	var resp RegistrationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Account.Status != domain.AccountStatusPending || resp.Token != "token-tutor-1" {
		t.Fatalf("unexpected registration response %+v", resp)
	}
	if accounts.verified.IP != "198.51.100.20" {
		t.Fatalf("expected client ip on verify, got %q", accounts.verified.IP)
	}

	if rr := postJSON(router, http.MethodPost, "/password/forgot", EmailRequest{Email: "tom@example.com"}); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if accounts.resetRole != domain.RoleTutor {
		t.Fatalf("expected tutor-scoped reset, got %q", accounts.resetRole)
	}
}

func TestAccountHandlerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	accounts := &stubAccounts{err: usecase.ErrPasswordMismatch}
	h := NewAccountHandler(domain.RoleUser, accounts, accounts, accounts)
	router := gin.New()
	router.POST("/login", h.Login)
	router.POST("/password/reset", h.ResetPassword)

	if rr := postJSON(router, http.MethodPost, "/login", LoginRequest{Email: "a@x.com", Password: "nope"}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	accounts.err = usecase.ErrPasswordReuse
	rr := postJSON(router, http.MethodPost, "/password/reset", ResetPasswordRequest{Email: "a@x.com", NewPassword: "same"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Error != "cannot reuse current password" {
		t.Fatalf("unexpected copy %q", resp.Error)
	}
}

func TestLogoutRecordsAuthenticatedAccount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	accounts := &stubAccounts{}
	h := NewAccountHandler(domain.RoleUser, accounts, accounts, accounts)
	router := gin.New()
	router.POST("/logout", withAccount("user-1", domain.RoleUser), h.Logout)

	if rr := postJSON(router, http.MethodPost, "/logout", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if accounts.logoutID != "user-1" {
		t.Fatalf("expected logout for user-1, got %q", accounts.logoutID)
	}
}

func TestReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(
		WithReadinessCheck("redis", func(context.Context) error { return errors.New("dial tcp: refused") }),
		WithReadinessCheck("database", func(context.Context) error { return nil }),
	)
	router := gin.New()
	router.GET("/readyz", h.Readiness)
	router.GET("/healthz", h.Status)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var resp ReadinessResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Checks["database"] != "ok" || resp.Checks["redis"] != "unavailable" {
		t.Fatalf("unexpected checks %v", resp.Checks)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected liveness 200, got %d", rr.Code)
	}
}
