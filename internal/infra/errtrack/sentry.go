// Package errtrack reports server errors and panics to Sentry.
package errtrack

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/wizlearn/account-service/internal/infra/config"
)

// Init configures the global Sentry hub. An empty DSN leaves reporting disabled and
// returns false.
func Init(cfg config.SentrySettings, app config.AppSettings) (bool, error) {
	if cfg.DSN == "" {
		return false, nil
	}
	environment := cfg.Environment
	if environment == "" {
		environment = app.Env
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      environment,
		ServerName:       app.Name,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return false, fmt.Errorf("init sentry: %w", err)
	}
	return true, nil
}

// Flush waits up to two seconds for buffered events.
func Flush() {
	sentry.Flush(2 * time.Second)
}

// Capture reports err on the hub bound to ctx, falling back to the current hub.
func Capture(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}
