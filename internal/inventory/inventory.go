package inventory

import (
	"sort"
	"sync"
	"time"

	"github.com/avelin/airseat/internal/domain"
)

// Inventory is the sole authority over seat state. All transitions on a
// flight's grid happen under that flight's lock, so hold is a true
// check-and-set and commit re-checks expiry with no window in between.
type Inventory struct {
	mu      sync.RWMutex
	flights map[string]*flightGrid
	holdTTL time.Duration
	now     func() time.Time
}

type flightGrid struct {
	mu     sync.Mutex
	flight domain.Flight
	order  []string
	seats  map[string]*domain.Seat
}

type Option func(*Inventory)

// WithClock overrides the time source (useful for expiry tests).
func WithClock(now func() time.Time) Option {
	return func(inv *Inventory) {
		inv.now = now
	}
}

func New(holdTTL time.Duration, opts ...Option) *Inventory {
	inv := &Inventory{
		flights: make(map[string]*flightGrid),
		holdTTL: holdTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// AddFlight creates a flight and its seat grid. The layout is immutable
// afterwards and seats are never deleted.
func (inv *Inventory) AddFlight(f domain.Flight) error {
	if f.Rows <= 0 {
		f.Rows = domain.DefaultRows
	}
	if f.SeatsPerRow <= 0 {
		f.SeatsPerRow = domain.DefaultSeatsPerRow
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, ok := inv.flights[f.ID]; ok {
		return domain.ErrFlightExists
	}

	grid := &flightGrid{
		flight: f,
		order:  f.SeatCodes(),
		seats:  make(map[string]*domain.Seat, f.Rows*f.SeatsPerRow),
	}
	for _, code := range grid.order {
		grid.seats[code] = &domain.Seat{
			FlightID: f.ID,
			SeatCode: code,
			State:    domain.SeatStateFree,
		}
	}
	inv.flights[f.ID] = grid
	return nil
}

// Flights lists the known flights sorted by ID.
func (inv *Inventory) Flights() []domain.Flight {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	flights := make([]domain.Flight, 0, len(inv.flights))
	for _, grid := range inv.flights {
		flights = append(flights, grid.flight)
	}
	sort.Slice(flights, func(i, j int) bool { return flights[i].ID < flights[j].ID })
	return flights
}

func (inv *Inventory) grid(flightID string) (*flightGrid, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	grid, ok := inv.flights[flightID]
	if !ok {
		return nil, domain.ErrFlightNotFound
	}
	return grid, nil
}

// Hold claims a free seat for attemptID until now+holdTTL. A seat whose
// previous hold has lapsed counts as free again; a live hold or a booked
// seat makes the claim fail, even for the attempt that already holds it.
func (inv *Inventory) Hold(flightID, seatCode, attemptID string) error {
	grid, err := inv.grid(flightID)
	if err != nil {
		return err
	}

	grid.mu.Lock()
	defer grid.mu.Unlock()

	seat, ok := grid.seats[seatCode]
	if !ok {
		return domain.ErrSeatNotFound
	}

	now := inv.now()
	if seat.State == domain.SeatStateHeld && now.After(seat.HeldUntil) {
		// lazy reclaim of an abandoned hold
		seat.State = domain.SeatStateFree
		seat.HeldBy = ""
		seat.HeldUntil = time.Time{}
	}
	if seat.State != domain.SeatStateFree {
		return domain.ErrSeatUnavailable
	}

	seat.State = domain.SeatStateHeld
	seat.HeldBy = attemptID
	seat.HeldUntil = now.Add(inv.holdTTL)
	return nil
}

// Release frees a seat held by attemptID. Releasing an already-free seat or
// one held by a different attempt is a no-op, so double release is safe.
func (inv *Inventory) Release(flightID, seatCode, attemptID string) {
	grid, err := inv.grid(flightID)
	if err != nil {
		return
	}

	grid.mu.Lock()
	defer grid.mu.Unlock()

	seat, ok := grid.seats[seatCode]
	if !ok {
		return
	}
	if seat.State != domain.SeatStateHeld || seat.HeldBy != attemptID {
		return
	}
	seat.State = domain.SeatStateFree
	seat.HeldBy = ""
	seat.HeldUntil = time.Time{}
}

// Commit turns attemptID's hold into a booked seat. The expiry check happens
// under the grid lock, so a hold that lapsed just before commit is rejected
// rather than silently succeeding.
func (inv *Inventory) Commit(flightID, seatCode, attemptID string) error {
	grid, err := inv.grid(flightID)
	if err != nil {
		return err
	}

	grid.mu.Lock()
	defer grid.mu.Unlock()

	seat, ok := grid.seats[seatCode]
	if !ok {
		return domain.ErrSeatNotFound
	}
	if seat.State != domain.SeatStateHeld || seat.HeldBy != attemptID {
		return domain.ErrHoldMismatch
	}
	if inv.now().After(seat.HeldUntil) {
		return domain.ErrHoldExpired
	}

	seat.State = domain.SeatStateBooked
	seat.HeldBy = ""
	seat.HeldUntil = time.Time{}
	return nil
}

// SweepExpired returns lapsed holds to free across all flights and reports
// how many seats were reclaimed.
func (inv *Inventory) SweepExpired() int {
	inv.mu.RLock()
	grids := make([]*flightGrid, 0, len(inv.flights))
	for _, grid := range inv.flights {
		grids = append(grids, grid)
	}
	inv.mu.RUnlock()

	reclaimed := 0
	for _, grid := range grids {
		grid.mu.Lock()
		now := inv.now()
		for _, seat := range grid.seats {
			if seat.State == domain.SeatStateHeld && now.After(seat.HeldUntil) {
				seat.State = domain.SeatStateFree
				seat.HeldBy = ""
				seat.HeldUntil = time.Time{}
				reclaimed++
			}
		}
		grid.mu.Unlock()
	}
	return reclaimed
}

// Snapshot returns the flight's seats in grid order as of a single point in
// time. Internal hold ownership is not exposed.
func (inv *Inventory) Snapshot(flightID string) ([]domain.SeatView, error) {
	grid, err := inv.grid(flightID)
	if err != nil {
		return nil, err
	}

	grid.mu.Lock()
	defer grid.mu.Unlock()

	view := make([]domain.SeatView, 0, len(grid.order))
	for _, code := range grid.order {
		seat := grid.seats[code]
		view = append(view, domain.SeatView{SeatCode: code, State: seat.State})
	}
	return view, nil
}
