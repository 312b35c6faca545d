package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.OTP.TTL != 2*time.Minute {
		t.Fatalf("expected otp ttl 2m, got %s", cfg.OTP.TTL)
	}
	if cfg.Lockout.Threshold != 5 || cfg.Lockout.Duration != 10*time.Minute {
		t.Fatalf("unexpected lockout defaults: %+v", cfg.Lockout)
	}
	if cfg.TutorCode.Prefix != "WIZ" || cfg.TutorCode.FirstSequence != 1001 {
		t.Fatalf("unexpected tutor code defaults: %+v", cfg.TutorCode)
	}
	if cfg.Mail.Driver != "log" || cfg.Events.Driver != "stub" {
		t.Fatalf("unexpected drivers: mail=%s events=%s", cfg.Mail.Driver, cfg.Events.Driver)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("WIZ_LOCKOUT_THRESHOLD", "3")
	t.Setenv("WIZ_OTP_TTL", "90s")
	t.Setenv("REDIS_KEY_PREFIX", "staging")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Lockout.Threshold != 3 {
		t.Fatalf("expected threshold 3, got %d", cfg.Lockout.Threshold)
	}
	if cfg.OTP.TTL != 90*time.Second {
		t.Fatalf("expected otp ttl 90s, got %s", cfg.OTP.TTL)
	}
	if cfg.Redis.KeyPrefix != "staging" {
		t.Fatalf("expected un-prefixed env fallback, got %q", cfg.Redis.KeyPrefix)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("WIZ_MAIL_DRIVER", "pigeon")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "mail.driver") {
		t.Fatalf("expected mail.driver in error, got %v", err)
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	cfg := AppConfig{
		Events:    EventsSettings{Driver: "stub"},
		Mail:      MailSettings{Driver: "mailersend"},
		TutorCode: TutorCodeSettings{Prefix: "WIZ"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"otp.ttl", "lockout.threshold", "lockout.duration", "mailersend_api_key"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}
