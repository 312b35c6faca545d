package mailer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/infra/config"
	"github.com/wizlearn/account-service/internal/infra/logger"
)

// Transport delivers one rendered message.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
}

// Mailer renders account emails and hands them to a Transport.
type Mailer struct {
	transport Transport
	logger    *zap.Logger
}

// New selects the transport named by cfg.Driver.
func New(cfg config.MailSettings, log *zap.Logger) (*Mailer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var transport Transport
	switch cfg.Driver {
	case "", "log":
		transport = NewLogTransport(log)
	case "smtp":
		transport = NewSMTPTransport(cfg)
	case "mailersend":
		ms, err := NewMailerSendTransport(cfg.MailerSendAPIKey, cfg.FromName, cfg.FromAddress)
		if err != nil {
			return nil, err
		}
		transport = ms
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
	return NewWithTransport(transport, log), nil
}

// NewWithTransport wraps an existing transport.
func NewWithTransport(transport Transport, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailer{transport: transport, logger: log}
}

func (m *Mailer) deliver(ctx context.Context, msg Message) error {
	if err := m.transport.Deliver(ctx, msg); err != nil {
		m.logger.Warn("email delivery failed",
			zap.String("kind", msg.Kind),
			zap.String("to", logger.MaskEmail(msg.To)),
			zap.Error(err),
		)
		return fmt.Errorf("deliver %s: %w", msg.Kind, err)
	}
	m.logger.Debug("email delivered", zap.String("kind", msg.Kind), zap.String("to", logger.MaskEmail(msg.To)))
	return nil
}

func (m *Mailer) SendOTP(ctx context.Context, to, code string, purpose domain.ChallengePurpose, expiresAt time.Time) error {
	return m.deliver(ctx, otpMessage(to, code, purpose, expiresAt))
}

func (m *Mailer) SendWelcome(ctx context.Context, to, name string, at time.Time) error {
	return m.deliver(ctx, welcomeMessage(to, name, at))
}

func (m *Mailer) SendTutorWelcome(ctx context.Context, to, name, tutorCode string, at time.Time) error {
	return m.deliver(ctx, tutorWelcomeMessage(to, name, tutorCode, at))
}

func (m *Mailer) SendTutorApproved(ctx context.Context, to, name string) error {
	return m.deliver(ctx, tutorApprovedMessage(to, name))
}

func (m *Mailer) SendLockNotice(ctx context.Context, to string, unlockAt time.Time) error {
	return m.deliver(ctx, lockNoticeMessage(to, unlockAt))
}
