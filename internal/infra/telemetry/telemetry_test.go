package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/wizlearn/account-service/internal/infra/config"
)

func TestAuthMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewAuthMetrics(reg)
	if err != nil {
		t.Fatalf("new auth metrics: %v", err)
	}

	metrics.ObserveOutcome("admin_sign_in", "unauthorized")
	metrics.ObserveOutcome("admin_sign_in", "unauthorized")
	metrics.ObserveOutcome("login", "success")
	metrics.IncLockout()

	if got := testutil.ToFloat64(metrics.Outcomes.WithLabelValues("admin_sign_in", "unauthorized")); got != 2 {
		t.Fatalf("expected 2 unauthorized sign-ins, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Outcomes.WithLabelValues("login", "success")); got != 1 {
		t.Fatalf("expected 1 successful login, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Lockouts); got != 1 {
		t.Fatalf("expected 1 lockout, got %f", got)
	}
}

func TestNewAuthMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewAuthMetrics(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewAuthMetrics(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	first.IncLockout()
	if got := testutil.ToFloat64(second.Lockouts); got != 1 {
		t.Fatalf("expected shared lockout counter, got %f", got)
	}
}

func TestNilAuthMetricsIsSafe(t *testing.T) {
	var metrics *AuthMetrics
	metrics.ObserveOutcome("login", "success")
	metrics.IncLockout()
}

func TestHandlerExposesRegistry(t *testing.T) {
	reg := NewRegistry()
	metrics, err := NewAuthMetrics(reg)
	if err != nil {
		t.Fatalf("new auth metrics: %v", err)
	}
	metrics.IncLockout()

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "wiz_auth_lockouts_total 1") {
		t.Fatalf("expected lockout counter in exposition:\n%s", rr.Body.String())
	}
}

func TestDisabledTracerProvider(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetrySettings{TracingEnabled: false}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new tracer provider: %v", err)
	}
	if tp.Enabled() {
		t.Fatalf("expected disabled provider")
	}
	_, span := tp.Tracer("test").Start(context.Background(), "noop")
	span.End()
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestExporterOptionsAcceptURLs(t *testing.T) {
	if got := len(exporterOptions("http://collector:4318")); got != 3 {
		t.Fatalf("expected insecure options for http, got %d", got)
	}
	if got := len(exporterOptions("https://collector:4318")); got != 2 {
		t.Fatalf("expected secure options for https, got %d", got)
	}
}
