package service

import (
	"context"
	"log/slog"

	"github.com/veloramarket/velora/pkg/slogx"
)

// Mailer delivers account emails. Implementations must not log the OTP
// or reset link at levels that ship to production sinks.
type Mailer interface {
	SendOTP(ctx context.Context, email, name, code string) error
	SendPasswordReset(ctx context.Context, email, name, resetURL string) error
}

// LogMailer writes outgoing mail to the log instead of sending it. It is
// the development default when no SMTP relay is configured.
type LogMailer struct{}

func (LogMailer) SendOTP(ctx context.Context, email, name, code string) error {
	slogx.FromContext(ctx).Info("otp email",
		slog.String("email", email),
		slog.String("name", name),
		slog.String("code", code),
	)
	return nil
}

func (LogMailer) SendPasswordReset(ctx context.Context, email, name, resetURL string) error {
	slogx.FromContext(ctx).Info("password reset email",
		slog.String("email", email),
		slog.String("name", name),
		slog.String("reset_url", resetURL),
	)
	return nil
}
