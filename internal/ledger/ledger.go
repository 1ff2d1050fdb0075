package ledger

import (
	"sync"

	"github.com/avelin/airseat/internal/domain"
)

// Ledger is the append-only collection of confirmed bookings, unique per
// (flight, seat). Inventory's invariants should make duplicates unreachable;
// the ledger still rejects them.
type Ledger struct {
	mu      sync.RWMutex
	entries []domain.Booking
	seen    map[seatKey]struct{}
}

type seatKey struct {
	flightID string
	seatCode string
}

func New() *Ledger {
	return &Ledger{seen: make(map[seatKey]struct{})}
}

// Append records a confirmed booking in arrival order.
func (l *Ledger) Append(b domain.Booking) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := seatKey{flightID: b.FlightID, seatCode: b.SeatCode}
	if _, ok := l.seen[key]; ok {
		return domain.ErrDuplicateBooking
	}
	l.seen[key] = struct{}{}
	l.entries = append(l.entries, b)
	return nil
}

// List returns the bookings in append order.
func (l *Ledger) List() []domain.Booking {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Booking, len(l.entries))
	copy(out, l.entries)
	return out
}
