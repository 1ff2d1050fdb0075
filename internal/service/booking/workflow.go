package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avelin/airseat/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State string

const (
	StateCreated       State = "CREATED"
	StateValidated     State = "VALIDATED"
	StateCodeIssued    State = "CODE_ISSUED"
	StateCodeVerified  State = "CODE_VERIFIED"
	StatePaymentChosen State = "PAYMENT_CHOSEN"
	StateConfirmed     State = "CONFIRMED"
	StateFailed        State = "FAILED"
	StateCancelled     State = "CANCELLED"
)

// Terminal reports whether no further transition is possible from the state.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateFailed || s == StateCancelled
}

// Attempt is one passenger's run through the booking workflow.
type Attempt struct {
	ID            string               `json:"id"`
	Passenger     domain.Passenger     `json:"passenger"`
	FlightID      string               `json:"flight_id"`
	SeatCode      string               `json:"seat_code"`
	State         State                `json:"state"`
	Payment       domain.PaymentMethod `json:"payment,omitempty"`
	FailureReason string               `json:"failure_reason,omitempty"`
	CodeExpiresAt time.Time            `json:"code_expires_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`

	holdHeld   bool
	terminalAt time.Time
}

type SeatInventory interface {
	Hold(flightID, seatCode, attemptID string) error
	Release(flightID, seatCode, attemptID string)
	Commit(flightID, seatCode, attemptID string) error
}

type CodeVerifier interface {
	Issue(attemptID string) (string, time.Time, error)
	Verify(attemptID, supplied string) bool
	Drop(attemptID string)
}

type Ledger interface {
	Append(b domain.Booking) error
}

// CodeSender delivers a one-time code to the passenger. Failure is fatal for
// the attempt.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string) error
}

// ConfirmationSender delivers the booking summary. Failure degrades to a
// warning, the booking stays confirmed.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, email string, b domain.Booking) error
}

// Archiver persists confirmed bookings outside the process. Optional and
// best-effort.
type Archiver interface {
	SaveBooking(ctx context.Context, b domain.Booking) error
}

type BookingUseCase interface {
	Start(ctx context.Context, input StartInput) (Attempt, error)
	SupplyCode(ctx context.Context, attemptID, code string) (Attempt, error)
	ChoosePayment(ctx context.Context, attemptID, method string) (ConfirmResult, error)
	Cancel(ctx context.Context, attemptID string) (Attempt, error)
	Get(attemptID string) (Attempt, error)
}

// DefaultRetention is how long a terminal attempt stays readable before the
// prune sweep drops it.
const DefaultRetention = 15 * time.Minute

type Service struct {
	inventory     SeatInventory
	verifier      CodeVerifier
	ledger        Ledger
	codes         CodeSender
	confirmations ConfirmationSender
	archive       Archiver
	validate      *validator.Validate
	log           *zap.Logger
	now           func() time.Time
	retention     time.Duration

	mu       sync.Mutex
	attempts map[string]*Attempt
}

type ServiceOption func(*Service)

// WithArchiver plugs in a persistence collaborator for confirmed bookings.
func WithArchiver(a Archiver) ServiceOption {
	return func(s *Service) {
		s.archive = a
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithRetention overrides how long terminal attempts remain readable.
func WithRetention(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.retention = d
	}
}

func NewService(
	inv SeatInventory,
	verifier CodeVerifier,
	ldg Ledger,
	codes CodeSender,
	confirmations ConfirmationSender,
	log *zap.Logger,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		inventory:     inv,
		verifier:      verifier,
		ledger:        ldg,
		codes:         codes,
		confirmations: confirmations,
		validate:      validator.New(),
		log:           log,
		now:           time.Now,
		retention:     DefaultRetention,
		attempts:      make(map[string]*Attempt),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type StartInput struct {
	FlightID  string           `json:"flight_id"`
	SeatCode  string           `json:"seat_code"`
	Passenger domain.Passenger `json:"passenger"`
}

// ConfirmResult is the outcome of a successful commit. DeliveryWarning is set
// when the confirmation transport failed after the booking was recorded.
type ConfirmResult struct {
	Attempt         Attempt        `json:"attempt"`
	Booking         domain.Booking `json:"booking"`
	DeliveryWarning bool           `json:"delivery_warning"`
}

// Start opens an attempt and drives it through validation, the seat hold and
// code issuance. On any failure the attempt ends Failed and the hold, if
// taken, is released.
func (s *Service) Start(ctx context.Context, input StartInput) (Attempt, error) {
	a := &Attempt{
		ID:        uuid.NewString(),
		Passenger: input.Passenger,
		FlightID:  input.FlightID,
		SeatCode:  input.SeatCode,
		State:     StateCreated,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.attempts[a.ID] = a
	s.mu.Unlock()

	if err := s.validate.Struct(input.Passenger); err != nil {
		s.fail(a, "invalid passenger details")
		return s.snapshot(a), fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.inventory.Hold(input.FlightID, input.SeatCode, a.ID); err != nil {
		s.fail(a, err.Error())
		return s.snapshot(a), err
	}
	if !s.transition(a, StateValidated, func(a *Attempt) { a.holdHeld = true }) {
		// a concurrent Cancel won; the hold it never saw is ours to undo
		s.inventory.Release(input.FlightID, input.SeatCode, a.ID)
		return s.snapshot(a), domain.ErrAttemptTerminal
	}

	code, expiresAt, err := s.verifier.Issue(a.ID)
	if err != nil {
		s.fail(a, "code issuance failed")
		return s.snapshot(a), err
	}
	if err := s.codes.SendCode(ctx, input.Passenger.Email, code); err != nil {
		s.log.Error("code delivery failed",
			zap.String("attempt_id", a.ID), zap.Error(err))
		s.fail(a, "code delivery failed")
		return s.snapshot(a), fmt.Errorf("%w: %v", domain.ErrCodeDelivery, err)
	}
	if !s.transition(a, StateCodeIssued, func(a *Attempt) { a.CodeExpiresAt = expiresAt }) {
		return s.snapshot(a), domain.ErrAttemptTerminal
	}

	s.log.Info("booking attempt opened",
		zap.String("attempt_id", a.ID),
		zap.String("flight_id", a.FlightID),
		zap.String("seat_code", a.SeatCode))
	return s.snapshot(a), nil
}

// SupplyCode checks the caller's code. Mismatch or expiry ends the attempt;
// a fresh attempt must be started.
func (s *Service) SupplyCode(ctx context.Context, attemptID, code string) (Attempt, error) {
	a, err := s.inState(attemptID, StateCodeIssued)
	if err != nil {
		return s.maybeSnapshot(attemptID), err
	}

	if !s.verifier.Verify(attemptID, code) {
		cause := domain.ErrCodeMismatch
		if s.now().After(a.CodeExpiresAt) {
			cause = domain.ErrCodeExpired
		}
		s.fail(a, cause.Error())
		return s.snapshot(a), cause
	}

	if !s.transition(a, StateCodeVerified, nil) {
		return s.snapshot(a), domain.ErrAttemptTerminal
	}
	return s.snapshot(a), nil
}

// ChoosePayment records the payment method and commits the hold. An empty
// selection cancels the attempt; an unknown method is an input error and the
// attempt stays open for a re-selection.
func (s *Service) ChoosePayment(ctx context.Context, attemptID, method string) (ConfirmResult, error) {
	a, err := s.inState(attemptID, StateCodeVerified)
	if err != nil {
		return ConfirmResult{Attempt: s.maybeSnapshot(attemptID)}, err
	}

	payment, err := domain.ParsePaymentMethod(method)
	if err != nil {
		if err == domain.ErrPaymentCancelled {
			s.cancel(a)
			return ConfirmResult{Attempt: s.snapshot(a)}, err
		}
		return ConfirmResult{Attempt: s.snapshot(a)}, err
	}
	if !s.transition(a, StatePaymentChosen, func(a *Attempt) { a.Payment = payment }) {
		return ConfirmResult{Attempt: s.snapshot(a)}, domain.ErrAttemptTerminal
	}

	if err := s.inventory.Commit(a.FlightID, a.SeatCode, a.ID); err != nil {
		s.fail(a, err.Error())
		return ConfirmResult{Attempt: s.snapshot(a)}, err
	}

	b := domain.Booking{
		Passenger:   a.Passenger,
		FlightID:    a.FlightID,
		SeatCode:    a.SeatCode,
		Payment:     payment,
		ConfirmedAt: s.now(),
	}
	if err := s.ledger.Append(b); err != nil {
		// unreachable while inventory holds its invariants
		s.log.Error("ledger rejected committed booking",
			zap.String("attempt_id", a.ID), zap.Error(err))
		s.fail(a, err.Error())
		return ConfirmResult{Attempt: s.snapshot(a)}, err
	}

	s.transition(a, StateConfirmed, func(a *Attempt) { a.holdHeld = false })
	s.verifier.Drop(a.ID)

	if s.archive != nil {
		if err := s.archive.SaveBooking(ctx, b); err != nil {
			s.log.Warn("booking archive failed",
				zap.String("attempt_id", a.ID), zap.Error(err))
		}
	}

	warning := false
	if err := s.confirmations.SendConfirmation(ctx, a.Passenger.Email, b); err != nil {
		warning = true
		s.log.Warn("confirmation delivery failed",
			zap.String("attempt_id", a.ID), zap.Error(err))
	}

	s.log.Info("booking confirmed",
		zap.String("attempt_id", a.ID),
		zap.String("flight_id", a.FlightID),
		zap.String("seat_code", a.SeatCode),
		zap.Bool("delivery_warning", warning))
	return ConfirmResult{Attempt: s.snapshot(a), Booking: b, DeliveryWarning: warning}, nil
}

// Cancel abandons a non-terminal attempt and releases its hold promptly, so
// reclaim does not wait for the expiry sweep. The check and the cancellation
// share one critical section so a concurrent confirm or fail cannot slip in
// between them.
func (s *Service) Cancel(ctx context.Context, attemptID string) (Attempt, error) {
	s.mu.Lock()
	a, ok := s.attempts[attemptID]
	if !ok {
		s.mu.Unlock()
		return Attempt{}, domain.ErrAttemptNotFound
	}
	if a.State.Terminal() {
		out := *a
		s.mu.Unlock()
		return out, domain.ErrAttemptTerminal
	}
	if a.State == StatePaymentChosen {
		// a commit is in flight; its outcome decides the attempt
		out := *a
		s.mu.Unlock()
		return out, domain.ErrInvalidState
	}
	s.releaseLocked(a)
	a.State = StateCancelled
	a.terminalAt = s.now()
	out := *a
	s.mu.Unlock()

	s.log.Info("booking attempt cancelled", zap.String("attempt_id", attemptID))
	return out, nil
}

// PruneTerminal drops terminal attempts whose retention window has passed
// and reports how many were removed. Confirmed bookings live on in the
// ledger; the attempt record only has to outlast follow-up status reads.
func (s *Service) PruneTerminal() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.retention)
	pruned := 0
	for id, a := range s.attempts {
		if a.State.Terminal() && a.terminalAt.Before(cutoff) {
			delete(s.attempts, id)
			pruned++
		}
	}
	return pruned
}

// Get returns the attempt's current state.
func (s *Service) Get(attemptID string) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[attemptID]
	if !ok {
		return Attempt{}, domain.ErrAttemptNotFound
	}
	return *a, nil
}

func (s *Service) inState(attemptID string, want State) (*Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[attemptID]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	if a.State.Terminal() {
		return nil, domain.ErrAttemptTerminal
	}
	if a.State != want {
		return nil, domain.ErrInvalidState
	}
	return a, nil
}

// transition advances the attempt unless it already reached a terminal
// state; terminal states are never overwritten.
func (s *Service) transition(a *Attempt, next State, mutate func(*Attempt)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.State.Terminal() {
		return false
	}
	a.State = next
	if mutate != nil {
		mutate(a)
	}
	if next.Terminal() {
		a.terminalAt = s.now()
	}
	return true
}

// fail moves the attempt to Failed and releases the hold it took, exactly
// once. A no-op when the attempt is already terminal.
func (s *Service) fail(a *Attempt, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.State.Terminal() {
		return
	}
	s.releaseLocked(a)
	a.State = StateFailed
	a.FailureReason = reason
	a.terminalAt = s.now()
}

func (s *Service) cancel(a *Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.State.Terminal() {
		return
	}
	s.releaseLocked(a)
	a.State = StateCancelled
	a.terminalAt = s.now()
}

func (s *Service) releaseLocked(a *Attempt) {
	if a.holdHeld {
		s.inventory.Release(a.FlightID, a.SeatCode, a.ID)
		a.holdHeld = false
	}
	s.verifier.Drop(a.ID)
}

func (s *Service) snapshot(a *Attempt) Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *a
}

func (s *Service) maybeSnapshot(attemptID string) Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.attempts[attemptID]; ok {
		return *a
	}
	return Attempt{}
}

var _ BookingUseCase = (*Service)(nil)
