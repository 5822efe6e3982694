package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"vaggo/backend/services/reservation-service/internal/guard"
	"vaggo/backend/services/reservation-service/internal/models"
	"vaggo/backend/services/reservation-service/internal/repository/memory"
	"vaggo/backend/services/reservation-service/internal/service"
	"vaggo/backend/services/reservation-service/internal/timer"
	"vaggo/backend/services/reservation-service/internal/timer/timertest"
)

var (
	start       = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	errDiskFull = errors.New("disk full")
)

type reservationBackend interface {
	service.ReservationStore
	guard.ActiveSpots
}

// faultyLedger fails selected writes. With debitCommits set the debit is stored before the
// error is returned, like a commit whose acknowledgement was lost.
type faultyLedger struct {
	*memory.LedgerStore
	debitErr     error
	debitCommits bool
	refundErr    error
}

func (f *faultyLedger) Apply(ctx context.Context, req models.ApplyRequest) (*models.Transaction, error) {
	switch {
	case req.Kind == models.TransactionDebit && f.debitErr != nil:
		if f.debitCommits {
			if _, err := f.LedgerStore.Apply(ctx, req); err != nil {
				return nil, err
			}
		}
		return nil, f.debitErr
	case req.Kind == models.TransactionRefund && f.refundErr != nil:
		return nil, f.refundErr
	}
	return f.LedgerStore.Apply(ctx, req)
}

type faultyReservations struct {
	*memory.ReservationStore
	createErr     error
	createCommits bool
}

func (f *faultyReservations) Create(ctx context.Context, res *models.Reservation) error {
	if f.createErr == nil {
		return f.ReservationStore.Create(ctx, res)
	}
	if f.createCommits {
		if err := f.ReservationStore.Create(ctx, res); err != nil {
			return err
		}
	}
	return f.createErr
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []models.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recordingNotifier) kinds(id uuid.UUID) []models.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.NotificationKind
	for _, n := range r.got {
		if n.ReservationID == id {
			out = append(out, n.Kind)
		}
	}
	return out
}

type fixture struct {
	clock        *timertest.Clock
	ledgerStore  service.LedgerStore
	reservations reservationBackend
	catalog      *memory.SpotCatalog
	guard        *guard.Guard
	ledger       *service.LedgerService
	credits      *service.CreditService
	svc          *service.ReservationService
	scheduler    *timer.Scheduler
	notes        *recordingNotifier
}

type fixtureOption func(*fixtureParams)

type fixtureParams struct {
	ledger       service.LedgerStore
	reservations reservationBackend
	cfg          service.ReservationConfig
}

func withLedger(l service.LedgerStore) fixtureOption {
	return func(p *fixtureParams) { p.ledger = l }
}

func withReservations(r reservationBackend) fixtureOption {
	return func(p *fixtureParams) { p.reservations = r }
}

func withoutAutoComplete() fixtureOption {
	return func(p *fixtureParams) { p.cfg.AutoCompleteOnExpiry = false }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	p := fixtureParams{
		ledger:       memory.NewLedgerStore(),
		reservations: memory.NewReservationStore(),
		cfg: service.ReservationConfig{
			StepTimeout:          time.Second,
			CompensationTimeout:  time.Second,
			AutoCompleteOnExpiry: true,
		},
	}
	for _, opt := range opts {
		opt(&p)
	}

	logger := zaptest.NewLogger(t)
	f := &fixture{
		clock:        timertest.NewClock(start),
		ledgerStore:  p.ledger,
		reservations: p.reservations,
		catalog: memory.NewSpotCatalog(
			models.Spot{ID: "spot-cheap", Name: "A1", PricePerHour: 1000, Available: true},
			models.Spot{ID: "spot-pricey", Name: "B7", PricePerHour: 6000, Available: true},
			models.Spot{ID: "spot-closed", Name: "C3", PricePerHour: 1000, Available: false},
		),
		notes: &recordingNotifier{},
	}
	f.guard = guard.New(guard.NewMemoryHolds(30*time.Second), f.catalog, p.reservations, logger)
	f.ledger = service.NewLedgerService(p.ledger, logger)
	f.credits = service.NewCreditService(f.ledger, logger)
	f.svc = service.NewReservationService(f.ledger, p.reservations, f.guard, nil, f.notes, f.clock, p.cfg, logger)
	f.scheduler = timer.NewScheduler(f.clock, f.svc.HandleTimerEvent, logger)
	f.svc.SetTimers(f.scheduler)
	t.Cleanup(f.scheduler.Close)
	return f
}

func (f *fixture) fund(t *testing.T, accountID string, amount int64) {
	t.Helper()
	_, err := f.credits.OnExternalPaymentConfirmed(context.Background(), accountID, amount, "seed-"+accountID)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), accountID)
	require.NoError(t, err)
	return b
}

func (f *fixture) kinds(t *testing.T, accountID string) []models.TransactionKind {
	t.Helper()
	txs, err := f.ledger.Transactions(context.Background(), accountID, 0)
	require.NoError(t, err)
	out := make([]models.TransactionKind, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		out = append(out, txs[i].Kind)
	}
	return out
}

func reserveReq(accountID, spotID string, minutes int) service.ReserveRequest {
	return service.ReserveRequest{AccountID: accountID, VehicleID: "ABC-1234", SpotID: spotID, DurationMinutes: minutes}
}
