package domain

import (
	"fmt"
	"time"
)

type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "CreditCard"
	PaymentDebitCard  PaymentMethod = "DebitCard"
	PaymentUPI        PaymentMethod = "UPI"
	PaymentNetBanking PaymentMethod = "NetBanking"
)

// ParsePaymentMethod maps an input string onto the closed payment set.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentCreditCard, PaymentDebitCard, PaymentUPI, PaymentNetBanking:
		return PaymentMethod(s), nil
	case "":
		return "", ErrPaymentCancelled
	default:
		return "", ErrInvalidPaymentMethod
	}
}

// Passenger carries the traveller details collected at intake.
type Passenger struct {
	Name     string `json:"name" validate:"required"`
	Passport string `json:"passport" validate:"required"`
	Mobile   string `json:"mobile" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

// Booking is the immutable record of a confirmed attempt. No two bookings
// share the same (FlightID, SeatCode).
type Booking struct {
	Passenger   Passenger     `json:"passenger"`
	FlightID    string        `json:"flight_id"`
	SeatCode    string        `json:"seat_code"`
	Payment     PaymentMethod `json:"payment"`
	ConfirmedAt time.Time     `json:"confirmed_at"`
}

// Summary renders the confirmation text sent to the passenger.
func (b Booking) Summary() string {
	return fmt.Sprintf(
		"Passenger: %s\nPassport: %s\nMobile: %s\nEmail: %s\nFlight: %s\nSeat: %s\nPayment: %s\n",
		b.Passenger.Name, b.Passenger.Passport, b.Passenger.Mobile, b.Passenger.Email,
		b.FlightID, b.SeatCode, b.Payment,
	)
}
