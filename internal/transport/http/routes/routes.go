package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/infra/config"
	"github.com/wizlearn/account-service/internal/infra/telemetry"
	"github.com/wizlearn/account-service/internal/transport/http/handlers"
	"github.com/wizlearn/account-service/internal/transport/http/middleware"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	AdminAuth     handlers.AdminAuthenticator
	Registration  handlers.Registrar
	Login         handlers.Authenticator
	PasswordReset handlers.PasswordResetter
	Review        handlers.Reviewer
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	HTTPMetrics *middleware.HTTPMetrics
	Registry    *prometheus.Registry
	Tracer      trace.Tracer
	Tokens      middleware.TokenParser
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.Sentry(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Tracing(deps.Tracer))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.Logger(logger))
	r.Use(deps.HTTPMetrics.Handler())
	r.Use(middleware.CORS(deps.Config.App.CORSAllowedOrigins))

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(telemetry.Handler(deps.Registry)))
	}

	limits := newLimits(deps)
	authMiddleware := middleware.RequireAuth(deps.Tokens)
	services := deps.Services

	api := r.Group("/api/v1")

	adminHandler := handlers.NewAdminHandler(services.AdminAuth, services.Review)
	admin := api.Group("/admin")
	adminAuth := admin.Group("/auth")
	adminAuth.POST("/sign-in", chain(limits.login("admin_sign_in_ip"), adminHandler.SignIn)...)
	adminAuth.POST("/verify-otp", chain(limits.otp("admin_verify_otp_ip"), adminHandler.VerifyOTP)...)

	review := admin.Group("")
	review.Use(authMiddleware)
	review.POST("/tutors/:id/approve", middleware.RequireRole(domain.RoleAdmin, domain.RoleStaff), adminHandler.ApproveTutor)
	review.PATCH("/accounts/:id/status", middleware.RequireRole(domain.RoleAdmin), adminHandler.ChangeStatus)

	for _, role := range []domain.Role{domain.RoleUser, domain.RoleTutor} {
		h := handlers.NewAccountHandler(role, services.Registration, services.Login, services.PasswordReset)
		slug := role.Slug()
		group := api.Group("/" + slug)

		group.POST("/register", chain(limits.register(slug+"_register_ip"), h.Register)...)
		group.POST("/register/resend", chain(limits.otp(slug+"_register_resend_ip"), h.ResendRegistrationOTP)...)
		group.POST("/register/verify", chain(limits.otp(slug+"_register_verify_ip"), h.VerifyRegistration)...)
		group.POST("/login", chain(limits.login(slug+"_login_ip"), h.Login)...)
		group.POST("/logout", authMiddleware, middleware.RequireRole(role), h.Logout)

		password := group.Group("/password")
		password.POST("/forgot", chain(limits.reset(slug+"_password_forgot_ip"), h.ForgotPassword)...)
		password.POST("/verify-otp", chain(limits.otp(slug+"_password_verify_ip"), h.VerifyResetOTP)...)
		password.POST("/reset", chain(limits.reset(slug+"_password_reset_ip"), h.ResetPassword)...)
	}

	return r
}

func chain(limit gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	if limit == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{limit, handler}
}

// limits builds per-IP rules from the rate_limit settings. A nil limiter or a
// non-positive limit disables the rule.
type limits struct {
	limiter  *middleware.RateLimiter
	settings config.RateLimitSettings
}

func newLimits(deps Dependencies) limits {
	return limits{limiter: deps.RateLimiter, settings: deps.Config.RateLimit}
}

func (l limits) rule(name string, limit int) gin.HandlerFunc {
	if l.limiter == nil || limit <= 0 {
		return nil
	}
	window := l.settings.WindowDuration
	if window <= 0 {
		window = time.Minute
	}
	return l.limiter.RateLimit(middleware.PerIP(name, limit, window))
}

func (l limits) login(name string) gin.HandlerFunc {
	return l.rule(name, l.settings.LoginMaxAttempts)
}

func (l limits) register(name string) gin.HandlerFunc {
	return l.rule(name, l.settings.RegisterMaxAttempts)
}

func (l limits) otp(name string) gin.HandlerFunc {
	return l.rule(name, l.settings.OTPMaxAttempts)
}

func (l limits) reset(name string) gin.HandlerFunc {
	return l.rule(name, l.settings.PasswordResetMaxAttempts)
}
