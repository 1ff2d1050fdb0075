package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avelin/airseat/internal/domain"
	"github.com/avelin/airseat/internal/inventory"
	"github.com/avelin/airseat/internal/ledger"
	"github.com/avelin/airseat/internal/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCodeSender struct {
	mu       sync.Mutex
	lastCode string
	err      error
}

func (s *stubCodeSender) SendCode(ctx context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.lastCode = code
	return nil
}

func (s *stubCodeSender) code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCode
}

type stubConfirmationSender struct {
	sent int
	err  error
}

func (s *stubConfirmationSender) SendConfirmation(ctx context.Context, email string, b domain.Booking) error {
	s.sent++
	return s.err
}

type stubArchiver struct {
	saved []domain.Booking
	err   error
}

func (s *stubArchiver) SaveBooking(ctx context.Context, b domain.Booking) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, b)
	return nil
}

type workflowFixture struct {
	svc           *Service
	inv           *inventory.Inventory
	ledger        *ledger.Ledger
	codes         *stubCodeSender
	confirmations *stubConfirmationSender
	now           *time.Time
}

func newWorkflowFixture(t *testing.T, opts ...ServiceOption) *workflowFixture {
	t.Helper()

	now := time.Now()
	clock := func() time.Time { return now }

	inv := inventory.New(time.Minute, inventory.WithClock(clock))
	require.NoError(t, inv.AddFlight(domain.Flight{ID: "AI101", FromAirport: "DEL", ToAirport: "BOM"}))

	f := &workflowFixture{
		inv:           inv,
		ledger:        ledger.New(),
		codes:         &stubCodeSender{},
		confirmations: &stubConfirmationSender{},
		now:           &now,
	}
	opts = append([]ServiceOption{WithClock(clock)}, opts...)
	f.svc = NewService(
		inv,
		otp.NewVerifier(2*time.Minute, otp.WithClock(clock)),
		f.ledger,
		f.codes,
		f.confirmations,
		zap.NewNop(),
		opts...,
	)
	return f
}

func (f *workflowFixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

func (f *workflowFixture) seatState(t *testing.T, code string) domain.SeatState {
	t.Helper()
	view, err := f.inv.Snapshot("AI101")
	require.NoError(t, err)
	for _, seat := range view {
		if seat.SeatCode == code {
			return seat.State
		}
	}
	t.Fatalf("seat %s not in snapshot", code)
	return ""
}

func validStart() StartInput {
	return StartInput{
		FlightID: "AI101",
		SeatCode: "3C",
		Passenger: domain.Passenger{
			Name:     "Asha Rao",
			Passport: "P1234567",
			Mobile:   "9876543210",
			Email:    "asha@example.com",
		},
	}
}

func TestWorkflow_EndToEnd_Confirmed(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, validStart())
	require.NoError(t, err)
	assert.Equal(t, StateCodeIssued, a.State)
	assert.Equal(t, domain.SeatStateHeld, f.seatState(t, "3C"))

	a, err = f.svc.SupplyCode(ctx, a.ID, f.codes.code())
	require.NoError(t, err)
	assert.Equal(t, StateCodeVerified, a.State)

	res, err := f.svc.ChoosePayment(ctx, a.ID, "UPI")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, res.Attempt.State)
	assert.False(t, res.DeliveryWarning)
	assert.Equal(t, domain.PaymentUPI, res.Booking.Payment)
	assert.Equal(t, domain.SeatStateBooked, f.seatState(t, "3C"))
	assert.Equal(t, 1, f.confirmations.sent)

	entries := f.ledger.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "AI101", entries[0].FlightID)
	assert.Equal(t, "3C", entries[0].SeatCode)
	assert.Equal(t, domain.PaymentUPI, entries[0].Payment)
}

func TestWorkflow_Start_ValidationFailure(t *testing.T) {
	f := newWorkflowFixture(t)

	input := validStart()
	input.Passenger.Email = "not-an-address"

	a, err := f.svc.Start(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, StateFailed, a.State)

	// no hold was taken
	assert.Equal(t, domain.SeatStateFree, f.seatState(t, "3C"))
}

func TestWorkflow_Start_EmptyFieldFails(t *testing.T) {
	f := newWorkflowFixture(t)

	input := validStart()
	input.Passenger.Passport = ""

	a, err := f.svc.Start(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, StateFailed, a.State)
}

func TestWorkflow_Start_SeatUnavailable(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	first, err := f.svc.Start(ctx, validStart())
	require.NoError(t, err)

	second, err := f.svc.Start(ctx, validStart())
	assert.ErrorIs(t, err, domain.ErrSeatUnavailable)
	assert.Equal(t, StateFailed, second.State)

	// the loser must not have freed the winner's hold
	assert.Equal(t, domain.SeatStateHeld, f.seatState(t, "3C"))

	a, err := f.svc.SupplyCode(ctx, first.ID, f.codes.code())
	require.NoError(t, err)
	res, err := f.svc.ChoosePayment(ctx, a.ID, "CreditCard")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, res.Attempt.State)
}

func TestWorkflow_ConcurrentStart_ExactlyOneWins(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := 0; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Start(ctx, validStart())
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, domain.ErrSeatUnavailable)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, domain.SeatStateHeld, f.seatState(t, "3C"))
}

func TestWorkflow_SupplyCode_Mismatch(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, validStart())
	require.NoError(t, err)

	a, err = f.svc.SupplyCode(ctx, a.ID, "000000")
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
	assert.Equal(t, StateFailed, a.State)

	// seat returns to free: a fresh hold must succeed
	assert.Equal(t, domain.SeatStateFree, f.seatState(t, "3C"))
	_, err = f.svc.Start(ctx, validStart())
	assert.NoError(t, err)
}

func TestWorkflow_SupplyCode_Expired(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, validStart())
	require.NoError(t, err)

	f.advance(3 * time.Minute)
	a, err = f.svc.SupplyCode(ctx, a.ID, f.codes.code())
	assert.ErrorIs(t, err, domain.ErrCodeExpired)
	assert.Equal(t, StateFailed, a.State)
}

func TestWorkflow_CodeDeliveryFailure(t *testing.T) {
	f := newWorkflowFixture(t)
	f.codes.err = errors.New("smtp unreachable")

	a, err := f.svc.Start(context.Background(), validStart())
	assert.ErrorIs(t, err, domain.ErrCodeDelivery)
	assert.Equal(t, StateFailed, a.State)
	assert.Equal(t, domain.SeatStateFree, f.seatState(t, "3C"))
}

func TestWorkflow_ChoosePayment_EmptySelectionCancels(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, validStart())
	require.NoError(t, err)
	a, err = f.svc.SupplyCode(ctx, a.ID, f.codes.code())
	require.NoError(t, err)

	res, err := f.svc.ChoosePayment(ctx, a.ID, "")
	assert.ErrorIs(t, err, domain.ErrPaymentCancelled)
	assert.Equal(t, StateCancelled, res.Attempt.State)
	assert.Equal(t, domain.SeatStateFree, f.seatState(t, "3C"))
	assert.Empty(t, f.ledger.List())
}

func TestWorkflow_ChoosePayment_UnknownMethodKeepsAttemptOpen(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, validStart())
	require.NoError(t, err)
	a, err = f.svc.SupplyCode(ctx, a.ID, f.codes.code())
	require.NoError(t, err)

	res, err := f.svc.ChoosePayment(ctx, a.ID, "Bitcoin")
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)
	assert.Equal(t, StateCodeVerified, res.Attempt.State)

	res, err = f.svc.ChoosePayment(ctx, a.ID, "NetBanking")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, res.Attempt.State)
}

func TestWorkflow_ChoosePayment_HoldExpired(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, validStart())
	require.NoError(t, err)
	a, err = f.svc.SupplyCode(ctx, a.ID, f.codes.code())
	require.NoError(t, err)

	// hold TTL is one minute, code TTL two: the hold lapses first
	f.advance(90 * time.Second)
	res, err := f.svc.ChoosePayment(ctx, a.ID, "DebitCard")
	assert.ErrorIs(t, err, domain.ErrHoldExpired)
	assert.Equal(t, StateFailed, res.Attempt.State)
	assert.Empty(t, f.ledger.List())
}

func TestWorkflow_ConfirmationDeliveryWarning(t *testing.T) {
	f := newWorkflowFixture(t)
	f.confirmations.err = errors.New("smtp unreachable")
	ctx := context.Background()

	a, err := f.svc.Start(ctx, validStart())
	require.NoError(t, err)
	a, err = f.svc.SupplyCode(ctx, a.ID, f.codes.code())
	require.NoError(t, err)

	res, err := f.svc.ChoosePayment(ctx, a.ID, "UPI")
	require.NoError(t, err)
	assert.True(t, res.DeliveryWarning)
	assert.Equal(t, StateConfirmed, res.Attempt.State)
	assert.Len(t, f.ledger.List(), 1)
	assert.Equal(t, domain.SeatStateBooked, f.seatState(t, "3C"))
}

func TestWorkflow_Archive_BestEffort(t *testing.T) {
	archive := &stubArchiver{err: errors.New("db down")}
	f := newWorkflowFixture(t, WithArchiver(archive))
	ctx := context.Background()

	a, err := f.svc.Start(ctx, validStart())
	require.NoError(t, err)
	a, err = f.svc.SupplyCode(ctx, a.ID, f.codes.code())
	require.NoError(t, err)

	res, err := f.svc.ChoosePayment(ctx, a.ID, "UPI")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, res.Attempt.State)
}

func TestWorkflow_Archive_ReceivesBooking(t *testing.T) {
	archive := &stubArchiver{}
	f := newWorkflowFixture(t, WithArchiver(archive))
	ctx := context.Background()

	a, err := f.svc.Start(ctx, validStart())
	require.NoError(t, err)
	a, err = f.svc.SupplyCode(ctx, a.ID, f.codes.code())
	require.NoError(t, err)
	_, err = f.svc.ChoosePayment(ctx, a.ID, "UPI")
	require.NoError(t, err)

	require.Len(t, archive.saved, 1)
	assert.Equal(t, "3C", archive.saved[0].SeatCode)
}

func TestWorkflow_Cancel_ReleasesHold(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, validStart())
	require.NoError(t, err)

	a, err = f.svc.Cancel(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, a.State)
	assert.Equal(t, domain.SeatStateFree, f.seatState(t, "3C"))
}

func TestWorkflow_Cancel_TerminalAttempt(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, validStart())
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, a.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrAttemptTerminal)
}

func TestWorkflow_Get(t *testing.T) {
	f := newWorkflowFixture(t)

	a, err := f.svc.Start(context.Background(), validStart())
	require.NoError(t, err)

	got, err := f.svc.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, StateCodeIssued, got.State)

	_, err = f.svc.Get("missing")
	assert.ErrorIs(t, err, domain.ErrAttemptNotFound)
}

// gatedInventory parks Commit until the test lets it through, exposing the
// window where payment is chosen but the seat is not yet booked.
type gatedInventory struct {
	*inventory.Inventory
	commitEntered chan struct{}
	commitRelease chan struct{}
}

func (g *gatedInventory) Commit(flightID, seatCode, attemptID string) error {
	g.commitEntered <- struct{}{}
	<-g.commitRelease
	return g.Inventory.Commit(flightID, seatCode, attemptID)
}

// gatedCodeSender parks SendCode until the test lets it through, exposing
// the window where Start holds a seat but has not finished.
type gatedCodeSender struct {
	entered chan struct{}
	release chan struct{}
	err     error
}

func (g *gatedCodeSender) SendCode(ctx context.Context, email, code string) error {
	g.entered <- struct{}{}
	<-g.release
	return g.err
}

// recordingVerifier exposes the attempt ID while Start is still running.
type recordingVerifier struct {
	*otp.Verifier
	mu     sync.Mutex
	lastID string
}

func (r *recordingVerifier) Issue(attemptID string) (string, time.Time, error) {
	r.mu.Lock()
	r.lastID = attemptID
	r.mu.Unlock()
	return r.Verifier.Issue(attemptID)
}

func (r *recordingVerifier) attemptID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastID
}

func TestWorkflow_Cancel_DuringPaymentCommit(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	inv := inventory.New(time.Minute, inventory.WithClock(clock))
	require.NoError(t, inv.AddFlight(domain.Flight{ID: "AI101", FromAirport: "DEL", ToAirport: "BOM"}))
	gated := &gatedInventory{
		Inventory:     inv,
		commitEntered: make(chan struct{}),
		commitRelease: make(chan struct{}),
	}

	codes := &stubCodeSender{}
	ldg := ledger.New()
	svc := NewService(
		gated,
		otp.NewVerifier(2*time.Minute, otp.WithClock(clock)),
		ldg,
		codes,
		&stubConfirmationSender{},
		zap.NewNop(),
		WithClock(clock),
	)
	ctx := context.Background()

	a, err := svc.Start(ctx, validStart())
	require.NoError(t, err)
	a, err = svc.SupplyCode(ctx, a.ID, codes.code())
	require.NoError(t, err)

	var res ConfirmResult
	var payErr error
	done := make(chan struct{})
	go func() {
		res, payErr = svc.ChoosePayment(ctx, a.ID, "UPI")
		close(done)
	}()
	<-gated.commitEntered

	// the commit is in flight; cancelling now must not produce a cancelled
	// attempt that owns a booked seat
	got, err := svc.Cancel(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, StatePaymentChosen, got.State)

	close(gated.commitRelease)
	<-done

	require.NoError(t, payErr)
	assert.Equal(t, StateConfirmed, res.Attempt.State)

	final, err := svc.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, final.State)
	assert.Len(t, ldg.List(), 1)
}

func TestWorkflow_Cancel_DuringStart_KeepsCancelledState(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	inv := inventory.New(time.Minute, inventory.WithClock(clock))
	require.NoError(t, inv.AddFlight(domain.Flight{ID: "AI101", FromAirport: "DEL", ToAirport: "BOM"}))

	verifier := &recordingVerifier{Verifier: otp.NewVerifier(2*time.Minute, otp.WithClock(clock))}
	sender := &gatedCodeSender{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		err:     errors.New("smtp unreachable"),
	}
	svc := NewService(inv, verifier, ledger.New(), sender, &stubConfirmationSender{}, zap.NewNop(), WithClock(clock))
	ctx := context.Background()

	var startErr error
	done := make(chan struct{})
	go func() {
		_, startErr = svc.Start(ctx, validStart())
		close(done)
	}()
	<-sender.entered

	// the seat is held and code delivery is stalled; cancel wins the race
	a, err := svc.Cancel(ctx, verifier.attemptID())
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, a.State)

	close(sender.release)
	<-done

	// delivery failure on the resumed path must not restamp the attempt
	assert.ErrorIs(t, startErr, domain.ErrCodeDelivery)
	final, err := svc.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, final.State)

	view, err := inv.Snapshot("AI101")
	require.NoError(t, err)
	for _, seat := range view {
		assert.Equal(t, domain.SeatStateFree, seat.State)
	}
}

func TestWorkflow_PruneTerminal(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, validStart())
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, a.ID)
	require.NoError(t, err)

	// within the retention window the terminal attempt stays readable
	assert.Equal(t, 0, f.svc.PruneTerminal())
	_, err = f.svc.Get(a.ID)
	require.NoError(t, err)

	f.advance(DefaultRetention + time.Minute)
	live, err := f.svc.Start(ctx, validStart())
	require.NoError(t, err)

	assert.Equal(t, 1, f.svc.PruneTerminal())
	_, err = f.svc.Get(a.ID)
	assert.ErrorIs(t, err, domain.ErrAttemptNotFound)

	// open attempts are never pruned
	_, err = f.svc.Get(live.ID)
	assert.NoError(t, err)
}

func TestWorkflow_SupplyCode_WrongState(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, validStart())
	require.NoError(t, err)
	a, err = f.svc.SupplyCode(ctx, a.ID, f.codes.code())
	require.NoError(t, err)

	_, err = f.svc.SupplyCode(ctx, a.ID, f.codes.code())
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}
