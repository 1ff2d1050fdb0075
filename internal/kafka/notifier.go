package kafka

import (
	"context"
	"time"

	"github.com/avelin/airseat/internal/domain"
)

// Notifier turns workflow notifications into kafka events. A publish failure
// is reported to the caller as a delivery failure.
type Notifier struct {
	producer *Producer
	topic    string
}

func NewNotifier(producer *Producer, topic string) *Notifier {
	return &Notifier{producer: producer, topic: topic}
}

func (n *Notifier) SendCode(ctx context.Context, email, code string) error {
	return n.producer.Publish(ctx, n.topic, email, NotificationEvent{
		Type:   EventCodeIssued,
		Email:  email,
		Code:   code,
		SentAt: time.Now(),
	})
}

func (n *Notifier) SendConfirmation(ctx context.Context, email string, b domain.Booking) error {
	return n.producer.Publish(ctx, n.topic, email, NotificationEvent{
		Type:     EventBookingConfirmed,
		Email:    email,
		FlightID: b.FlightID,
		SeatCode: b.SeatCode,
		Summary:  b.Summary(),
		SentAt:   time.Now(),
	})
}
