package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "WIZ"

type AppConfig struct {
	App            AppSettings            `mapstructure:"app"`
	Postgres       PostgresSettings       `mapstructure:"postgres"`
	Redis          RedisSettings          `mapstructure:"redis"`
	Events         EventsSettings         `mapstructure:"events"`
	Kafka          KafkaSettings          `mapstructure:"kafka"`
	NATS           NATSSettings           `mapstructure:"nats"`
	JWT            JWTSettings            `mapstructure:"jwt"`
	OTP            OTPSettings            `mapstructure:"otp"`
	Lockout        LockoutSettings        `mapstructure:"lockout"`
	Mail           MailSettings           `mapstructure:"mail"`
	PasswordPolicy PasswordPolicySettings `mapstructure:"password_policy"`
	TutorCode      TutorCodeSettings      `mapstructure:"tutor_code"`
	Telemetry      TelemetrySettings      `mapstructure:"telemetry"`
	Sentry         SentrySettings         `mapstructure:"sentry"`
	RateLimit      RateLimitSettings      `mapstructure:"rate_limit"`
	Argon2         Argon2Settings         `mapstructure:"argon2"`
}

type AppSettings struct {
	Name               string   `mapstructure:"name"`
	Env                string   `mapstructure:"env"`
	Host               string   `mapstructure:"host"`
	Port               int      `mapstructure:"port"`
	RunMigrations      bool     `mapstructure:"run_migrations"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection, TLS and the key namespace.
type RedisSettings struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// EventsSettings selects the event bus driver: stub, kafka or nats.
type EventsSettings struct {
	Driver string `mapstructure:"driver"`
}

// KafkaSettings configures the Kafka producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

type NATSSettings struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type JWTSettings struct {
	KeyDirectory   string        `mapstructure:"key_directory"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// OTPSettings governs every emailed one-time passcode.
type OTPSettings struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// LockoutSettings governs the admin password step.
type LockoutSettings struct {
	Threshold int           `mapstructure:"threshold"`
	Duration  time.Duration `mapstructure:"duration"`
}

// MailSettings selects the mail driver: log, smtp or mailersend.
type MailSettings struct {
	Driver           string `mapstructure:"driver"`
	FromAddress      string `mapstructure:"from_address"`
	FromName         string `mapstructure:"from_name"`
	SMTPHost         string `mapstructure:"smtp_host"`
	SMTPPort         int    `mapstructure:"smtp_port"`
	SMTPUsername     string `mapstructure:"smtp_username"`
	SMTPPassword     string `mapstructure:"smtp_password"`
	MailerSendAPIKey string `mapstructure:"mailersend_api_key"`
}

type PasswordPolicySettings struct {
	MinLength int `mapstructure:"min_length"`
	MinScore  int `mapstructure:"min_score"`
}

// TutorCodeSettings shapes identifiers of the form {prefix}{YYYYMMDD}/{sequence}.
type TutorCodeSettings struct {
	Prefix        string `mapstructure:"prefix"`
	FirstSequence int64  `mapstructure:"first_sequence"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

type SentrySettings struct {
	DSN         string  `mapstructure:"dsn"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Environment string  `mapstructure:"environment"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint.
type RateLimitSettings struct {
	WindowDuration           time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts         int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts      int           `mapstructure:"register_max_attempts"`
	OTPMaxAttempts           int           `mapstructure:"otp_max_attempts"`
	PasswordResetMaxAttempts int           `mapstructure:"password_reset_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

var configKeys = []string{
	"app.name",
	"app.env",
	"app.host",
	"app.port",
	"app.run_migrations",
	"app.cors_allowed_origins",
	"postgres.host",
	"postgres.port",
	"postgres.user",
	"postgres.password",
	"postgres.database",
	"postgres.ssl_mode",
	"postgres.max_conns",
	"postgres.min_conns",
	"postgres.max_conn_lifetime",
	"postgres.max_conn_idle_time",
	"postgres.health_check_period",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.tls_enabled",
	"redis.key_prefix",
	"redis.rate_limit_prefix",
	"events.driver",
	"kafka.brokers",
	"kafka.topic_prefix",
	"nats.url",
	"nats.subject_prefix",
	"jwt.key_directory",
	"jwt.issuer",
	"jwt.audience",
	"jwt.access_token_ttl",
	"otp.ttl",
	"lockout.threshold",
	"lockout.duration",
	"mail.driver",
	"mail.from_address",
	"mail.from_name",
	"mail.smtp_host",
	"mail.smtp_port",
	"mail.smtp_username",
	"mail.smtp_password",
	"mail.mailersend_api_key",
	"password_policy.min_length",
	"password_policy.min_score",
	"tutor_code.prefix",
	"tutor_code.first_sequence",
	"telemetry.tracing_enabled",
	"telemetry.otlp_endpoint",
	"telemetry.service_name",
	"telemetry.sampling_rate",
	"sentry.dsn",
	"sentry.sample_rate",
	"sentry.environment",
	"rate_limit.window_duration",
	"rate_limit.login_max_attempts",
	"rate_limit.register_max_attempts",
	"rate_limit.otp_max_attempts",
	"rate_limit.password_reset_max_attempts",
	"argon2.memory",
	"argon2.iterations",
	"argon2.parallelism",
	"argon2.salt_length",
	"argon2.key_length",
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, configKeys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.OTP.TTL <= 0 {
		errs = append(errs, fmt.Errorf("otp.ttl must be positive, got %s", c.OTP.TTL))
	}
	if c.Lockout.Threshold < 1 {
		errs = append(errs, fmt.Errorf("lockout.threshold must be at least 1, got %d", c.Lockout.Threshold))
	}
	if c.Lockout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("lockout.duration must be positive, got %s", c.Lockout.Duration))
	}
	switch c.Events.Driver {
	case "stub", "kafka", "nats":
	default:
		errs = append(errs, fmt.Errorf("events.driver %q is not one of stub, kafka, nats", c.Events.Driver))
	}
	switch c.Mail.Driver {
	case "log", "smtp", "mailersend":
	default:
		errs = append(errs, fmt.Errorf("mail.driver %q is not one of log, smtp, mailersend", c.Mail.Driver))
	}
	if c.Mail.Driver == "mailersend" && c.Mail.MailerSendAPIKey == "" {
		errs = append(errs, errors.New("mail.mailersend_api_key is required for the mailersend driver"))
	}
	if c.TutorCode.Prefix == "" {
		errs = append(errs, errors.New("tutor_code.prefix must not be empty"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "account-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.run_migrations", true)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "wiz")
	v.SetDefault("postgres.password", "wiz_password")
	v.SetDefault("postgres.database", "wiz")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "wiz")
	v.SetDefault("redis.rate_limit_prefix", "wiz:rate_limit")

	v.SetDefault("events.driver", "stub")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "wiz")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "wiz")

	v.SetDefault("jwt.key_directory", "./secrets")
	v.SetDefault("jwt.issuer", "account-service")
	v.SetDefault("jwt.audience", "wizlearn")
	v.SetDefault("jwt.access_token_ttl", "24h")

	v.SetDefault("otp.ttl", "2m")
	v.SetDefault("lockout.threshold", 5)
	v.SetDefault("lockout.duration", "10m")

	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.from_address", "no-reply@wizlearn.local")
	v.SetDefault("mail.from_name", "WizLearn")
	v.SetDefault("mail.smtp_host", "localhost")
	v.SetDefault("mail.smtp_port", 1025)

	v.SetDefault("password_policy.min_length", 8)
	v.SetDefault("password_policy.min_score", 2)

	v.SetDefault("tutor_code.prefix", "WIZ")
	v.SetDefault("tutor_code.first_sequence", 1001)

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "account-service")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 10)
	v.SetDefault("rate_limit.register_max_attempts", 5)
	v.SetDefault("rate_limit.otp_max_attempts", 10)
	v.SetDefault("rate_limit.password_reset_max_attempts", 5)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
