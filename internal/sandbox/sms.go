package sandbox

import (
	"context"
	"log/slog"
)

// Sender delivers one-time codes to the customer's phone.
type Sender interface {
	Send(ctx context.Context, phone, code string) error
}

// LoggerSender is a stub implementation that writes the code to the logger
// instead of an SMS gateway.
type LoggerSender struct {
	logger *slog.Logger
}

// NewLoggerSender constructs a logging sender stub.
func NewLoggerSender(logger *slog.Logger) *LoggerSender {
	return &LoggerSender{logger: logger}
}

// Send writes the code to the structured logger.
func (s *LoggerSender) Send(_ context.Context, phone, code string) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Info("sms code issued", "phone", phone, "code", code)
	return nil
}
