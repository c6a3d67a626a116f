package mailer

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of delivering them. It is
// the development default.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name returns "log".
func (s *LogSender) Name() string { return "log" }

// Send logs the envelope and always succeeds.
func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	s.logger.InfoContext(ctx, "email not delivered (log sender)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("template", msg.Template),
		slog.Int("html_bytes", len(msg.HTML)),
	)
	return nil
}
