package flights

import (
	"context"

	"github.com/avelin/airseat/internal/domain"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	Create(ctx context.Context, f domain.Flight) error
	SeatMap(ctx context.Context, flightID string) ([]domain.SeatView, error)
}

// SeatInventory is the read/setup surface the flight service needs from the
// seat inventory.
type SeatInventory interface {
	AddFlight(f domain.Flight) error
	Flights() []domain.Flight
	Snapshot(flightID string) ([]domain.SeatView, error)
}

type Cache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	GetSeatMap(ctx context.Context, flightID string) ([]domain.SeatView, error)
	SetSeatMap(ctx context.Context, flightID string, seats []domain.SeatView) error
}

// FlightService serves the presentation layer: flight listing and seat
// snapshots, read-through cached. The inventory stays authoritative; a nil
// cache just means every read hits it.
type FlightService struct {
	inventory SeatInventory
	cache     Cache
}

func NewFlightService(inventory SeatInventory, cache Cache) *FlightService {
	return &FlightService{inventory: inventory, cache: cache}
}

func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	flights := s.inventory.Flights()
	if s.cache != nil {
		_ = s.cache.SetFlights(ctx, flights)
	}
	return flights, nil
}

func (s *FlightService) Create(ctx context.Context, f domain.Flight) error {
	if err := s.inventory.AddFlight(f); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.SetFlights(ctx, s.inventory.Flights())
	}
	return nil
}

func (s *FlightService) SeatMap(ctx context.Context, flightID string) ([]domain.SeatView, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetSeatMap(ctx, flightID); err == nil && cached != nil {
			return cached, nil
		}
	}

	seats, err := s.inventory.Snapshot(flightID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetSeatMap(ctx, flightID, seats)
	}
	return seats, nil
}

var _ FlightUseCase = (*FlightService)(nil)
