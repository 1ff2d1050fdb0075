package domain

import "time"

type SeatState string

const (
	SeatStateFree   SeatState = "FREE"
	SeatStateHeld   SeatState = "HELD"
	SeatStateBooked SeatState = "BOOKED"
)

// Seat is a single cell of a flight's grid. HeldBy and HeldUntil are set only
// while the seat is HELD.
type Seat struct {
	FlightID  string
	SeatCode  string
	State     SeatState
	HeldBy    string
	HeldUntil time.Time
}

// SeatView is the read-only projection returned by inventory snapshots.
type SeatView struct {
	SeatCode string    `json:"seat_code"`
	State    SeatState `json:"state"`
}
