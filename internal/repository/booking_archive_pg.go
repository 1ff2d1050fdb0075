package repository

import (
	"context"
	"errors"

	"github.com/avelin/airseat/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingArchive interface {
	SaveBooking(ctx context.Context, b domain.Booking) error
	ListBookings(ctx context.Context) ([]domain.Booking, error)
}

// PGBookingArchive keeps an off-process copy of confirmed bookings. The
// in-memory ledger stays authoritative; this exists for retention and export.
type PGBookingArchive struct {
	db *pgxpool.Pool
}

func NewBookingArchive(db *pgxpool.Pool) *PGBookingArchive {
	return &PGBookingArchive{db: db}
}

func (r *PGBookingArchive) SaveBooking(ctx context.Context, b domain.Booking) error {
	cmd, err := r.db.Exec(ctx, `
		INSERT INTO bookings (flight_id, seat_code, passenger_name, passport, mobile, email, payment, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (flight_id, seat_code) DO NOTHING
	`, b.FlightID, b.SeatCode, b.Passenger.Name, b.Passenger.Passport, b.Passenger.Mobile, b.Passenger.Email, b.Payment, b.ConfirmedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errors.New("booking already archived")
	}
	return nil
}

func (r *PGBookingArchive) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT flight_id, seat_code, passenger_name, passport, mobile, email, payment, confirmed_at
		FROM bookings ORDER BY confirmed_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.FlightID, &b.SeatCode, &b.Passenger.Name, &b.Passenger.Passport, &b.Passenger.Mobile, &b.Passenger.Email, &b.Payment, &b.ConfirmedAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

var _ BookingArchive = (*PGBookingArchive)(nil)
