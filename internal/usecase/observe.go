package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const tracerName = "github.com/wizlearn/account-service/internal/usecase"

// Flow names used for spans and outcome metrics.
const (
	FlowAdminSignIn    = "admin_sign_in"
	FlowAdminVerifyOTP = "admin_verify_otp"
	FlowRegister       = "register"
	FlowRegisterResend = "register_resend"
	FlowRegisterVerify = "register_verify"
	FlowLogin          = "login"
	FlowLogout         = "logout"
	FlowForgotPassword = "forgot_password"
	FlowVerifyResetOTP = "verify_reset_otp"
	FlowResetPassword  = "reset_password"
	FlowApproveTutor   = "approve_tutor"
	FlowChangeStatus   = "change_status"
)

const outcomeSuccess = "success"

// AuthMetrics receives flow outcomes and lockouts.
type AuthMetrics interface {
	ObserveOutcome(flow, outcome string)
	IncLockout()
}

// instrumentation opens a span per flow and records its outcome once the flow returns.
type instrumentation struct {
	metrics AuthMetrics
}

func (i instrumentation) start(ctx context.Context, flow string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, flow)
	return ctx, func(err error) {
		outcome := outcomeSuccess
		if err != nil {
			outcome = string(KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.String("auth.outcome", outcome))
		span.End()
		if i.metrics != nil {
			i.metrics.ObserveOutcome(flow, outcome)
		}
	}
}

func (i instrumentation) lockout() {
	if i.metrics != nil {
		i.metrics.IncLockout()
	}
}

// sideEffect logs a failed best-effort step. It never alters the caller's result.
func sideEffect(logger *zap.Logger, op string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	logger.Warn(op+" failed", append(fields, zap.Error(err))...)
}

// spawnFunc runs detached work such as welcome mail.
type spawnFunc func(func())

func goSpawn(fn func()) { go fn() }
