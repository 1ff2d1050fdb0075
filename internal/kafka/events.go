package kafka

import "time"

const (
	EventCodeIssued       = "code_issued"
	EventBookingConfirmed = "booking_confirmed"
)

// NotificationEvent is the message the booking workflow publishes for the
// notification worker to deliver.
type NotificationEvent struct {
	Type     string    `json:"type"`
	Email    string    `json:"email"`
	Code     string    `json:"code,omitempty"`
	FlightID string    `json:"flight_id,omitempty"`
	SeatCode string    `json:"seat_code,omitempty"`
	Summary  string    `json:"summary,omitempty"`
	SentAt   time.Time `json:"sent_at"`
}
