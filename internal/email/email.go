package email

import (
	"context"
	"fmt"

	"github.com/avelin/airseat/internal/domain"
	"github.com/avelin/airseat/internal/kafka"
	"go.uber.org/zap"
)

// Sender is the outbound mail channel. The actual transport lives behind
// this type; here delivery is logged, which is enough for local runs.
type Sender struct {
	log *zap.Logger
}

func NewSender(log *zap.Logger) *Sender {
	return &Sender{log: log}
}

func (s *Sender) SendCode(ctx context.Context, email, code string) error {
	return s.send(email, "Your verification code for airline booking",
		fmt.Sprintf("Your verification code for booking is: %s", code))
}

func (s *Sender) SendConfirmation(ctx context.Context, email string, b domain.Booking) error {
	// the boarding-pass QR attachment slot stays empty until a generator is wired in
	return s.send(email, "Your booking confirmation", b.Summary())
}

// Deliver dispatches a consumed notification event to the mail channel.
func (s *Sender) Deliver(ctx context.Context, event kafka.NotificationEvent) error {
	switch event.Type {
	case kafka.EventCodeIssued:
		return s.SendCode(ctx, event.Email, event.Code)
	case kafka.EventBookingConfirmed:
		return s.send(event.Email, "Your booking confirmation", event.Summary)
	default:
		s.log.Warn("unknown notification event", zap.String("type", event.Type))
		return nil
	}
}

func (s *Sender) send(to, subject, body string) error {
	s.log.Info("sending email",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)))
	return nil
}
