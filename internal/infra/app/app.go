package app

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wizlearn/account-service/internal/core/port"
	"github.com/wizlearn/account-service/internal/infra/config"
	"github.com/wizlearn/account-service/internal/infra/database"
	"github.com/wizlearn/account-service/internal/infra/errtrack"
	"github.com/wizlearn/account-service/internal/infra/events"
	kafkainfra "github.com/wizlearn/account-service/internal/infra/kafka"
	"github.com/wizlearn/account-service/internal/infra/logger"
	"github.com/wizlearn/account-service/internal/infra/mailer"
	natsinfra "github.com/wizlearn/account-service/internal/infra/nats"
	redisinfra "github.com/wizlearn/account-service/internal/infra/redis"
	"github.com/wizlearn/account-service/internal/infra/security"
	"github.com/wizlearn/account-service/internal/infra/telemetry"
	postgresrepo "github.com/wizlearn/account-service/internal/repository/postgres"
	redisrepo "github.com/wizlearn/account-service/internal/repository/redis"
	"github.com/wizlearn/account-service/internal/transport/http/middleware"
	"github.com/wizlearn/account-service/internal/transport/http/routes"
	"github.com/wizlearn/account-service/internal/usecase"
)

const tracerName = "github.com/wizlearn/account-service"

type closer interface {
	Close() error
}

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	eventBus closer
	tracing  *telemetry.TracerProvider
	sentry   bool
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	sentryEnabled, err := errtrack.Init(cfg.Sentry, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init sentry: %w", err)
	}

	tracing, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if cfg.App.RunMigrations {
		if err := database.RunMigrations(ctx, pool, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	a := &Application{
		cfg:     cfg,
		logger:  log,
		pool:    pool,
		redis:   redisClient,
		tracing: tracing,
		sentry:  sentryEnabled,
	}
	if err := a.wire(); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *Application) wire() error {
	cfg, log := a.cfg, a.logger

	keyProvider, err := loadKeyProvider(cfg, log)
	if err != nil {
		return fmt.Errorf("init key provider: %w", err)
	}
	tokens, err := security.NewTokenIssuer(keyProvider, security.TokenIssuerConfig{
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.AccessTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("init token issuer: %w", err)
	}

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return fmt.Errorf("configure argon2: %w", err)
	}
	policy := security.NewPasswordPolicy(cfg.PasswordPolicy.MinLength, cfg.PasswordPolicy.MinScore)

	mail, err := mailer.New(cfg.Mail, log)
	if err != nil {
		return fmt.Errorf("init mailer: %w", err)
	}

	publisher, err := a.eventPublisher()
	if err != nil {
		return fmt.Errorf("init event bus: %w", err)
	}

	registry := telemetry.NewRegistry()
	authMetrics, err := telemetry.NewAuthMetrics(registry)
	if err != nil {
		return fmt.Errorf("init auth metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	repos := postgresrepo.NewRepositories(a.pool)
	cache := redisrepo.NewCacheRepository(a.redis.Client(), cfg.Redis.KeyPrefix)
	challenges := usecase.NewChallengeStore(cache, cfg.OTP.TTL)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(a.redis.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log).WithMetrics(httpMetrics)

	guard := usecase.NewLockoutGuard(repos.Accounts, mail, publisher, usecase.LockoutPolicy{
		Threshold: cfg.Lockout.Threshold,
		Duration:  cfg.Lockout.Duration,
	}).WithLogger(log).WithMetrics(authMetrics)

	adminAuth := usecase.NewAdminAuthService(repos.Accounts, hasher, guard, challenges, mail, tokens, repos.LoginHistory).
		WithLogger(log).
		WithMetrics(authMetrics)
	registration := usecase.NewRegistrationService(
		repos.Accounts,
		repos.Sequences,
		hasher,
		policy,
		challenges,
		mail,
		tokens,
		repos.LoginHistory,
		publisher,
		usecase.TutorCodeOptions{Prefix: cfg.TutorCode.Prefix, FirstSequence: cfg.TutorCode.FirstSequence},
	).WithLogger(log).WithMetrics(authMetrics)
	login := usecase.NewLoginService(repos.Accounts, hasher, tokens, repos.LoginHistory).
		WithLogger(log).
		WithMetrics(authMetrics)
	passwordReset := usecase.NewPasswordResetService(repos.Accounts, hasher, policy, challenges, mail, publisher).
		WithLogger(log).
		WithMetrics(authMetrics)
	review := usecase.NewReviewService(repos.Accounts, mail, publisher).
		WithLogger(log).
		WithMetrics(authMetrics)

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		HTTPMetrics: httpMetrics,
		Registry:    registry,
		Tracer:      a.tracing.Tracer(tracerName),
		Tokens:      tokens,
		Database:    a.pool,
		Cache:       a.redis,
		Services: routes.ServiceSet{
			AdminAuth:     adminAuth,
			Registration:  registration,
			Login:         login,
			PasswordReset: passwordReset,
			Review:        review,
		},
	})
	return nil
}

// eventPublisher selects the transport named by events.driver.
func (a *Application) eventPublisher() (port.EventPublisher, error) {
	cfg, log := a.cfg, a.logger
	driver := strings.ToLower(strings.TrimSpace(cfg.Events.Driver))

	var sink events.Sink
	switch driver {
	case "", "stub":
		log.Info("event bus driver is stub, events are logged only")
		sink = events.NewLogSink(log)
	case "kafka":
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			return nil, err
		}
		a.eventBus = producer
		sink = producer
	case "nats":
		publisher, err := natsinfra.NewPublisher(cfg.NATS, log)
		if err != nil {
			return nil, err
		}
		a.eventBus = publisher
		sink = publisher
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
	}
	return events.NewPublisher(sink, cfg.App), nil
}

// loadKeyProvider reads signing keys from jwt.key_directory. Development runs without
// a key directory get an ephemeral key, so tokens do not survive a restart.
func loadKeyProvider(cfg *config.AppConfig, log *zap.Logger) (security.KeyProvider, error) {
	provider, err := security.NewDirKeyProvider(cfg.JWT.KeyDirectory)
	if err == nil {
		return provider, nil
	}
	if cfg.App.Env != "development" || !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	key, genErr := rsa.GenerateKey(rand.Reader, 2048)
	if genErr != nil {
		return nil, fmt.Errorf("generate ephemeral signing key: %w", genErr)
	}
	log.Warn("jwt key directory missing, using an ephemeral signing key",
		zap.String("key_directory", cfg.JWT.KeyDirectory),
	)
	return security.NewStaticKeyProvider("ephemeral", key), nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting account service",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("events_driver", a.cfg.Events.Driver),
		zap.Bool("tracing", a.tracing.Enabled()),
		zap.Bool("sentry", a.sentry),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down account service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// close releases resources in reverse order of acquisition.
func (a *Application) close(ctx context.Context) {
	if a.eventBus != nil {
		if err := a.eventBus.Close(); err != nil {
			a.logger.Warn("close event bus", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer provider", zap.Error(err))
		}
	}
	if a.sentry {
		errtrack.Flush()
	}
}
