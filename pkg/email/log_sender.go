package email

import (
	"context"
	"log/slog"
)

// LogSender implements EmailSender for development and tests. Emails are
// written to the logger instead of being delivered.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender creates a sender that logs emails instead of delivering them.
func NewLogSender(log *slog.Logger) EmailSender {
	if log == nil {
		log = slog.Default()
	}
	return &LogSender{log: log}
}

// SendEmail validates the parameters and logs the would-be delivery.
func (s *LogSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "email send skipped (dev sender)",
		slog.String("to", params.SendTo),
		slog.String("subject", params.Subject),
		slog.String("tag", params.Tag),
	)
	return nil
}
