package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"vaggo/backend/services/reservation-service/internal/errs"
	"vaggo/backend/services/reservation-service/internal/guard"
	"vaggo/backend/services/reservation-service/internal/models"
	"vaggo/backend/services/reservation-service/internal/timer"
)

// MaxDurationMinutes caps a single reservation at one day.
const MaxDurationMinutes = 24 * 60

// ReservationConfig tunes the reservation saga.
type ReservationConfig struct {
	StepTimeout          time.Duration
	CompensationTimeout  time.Duration
	AutoCompleteOnExpiry bool
}

// ReserveRequest asks for a spot for DurationMinutes starting now.
type ReserveRequest struct {
	AccountID       string `json:"-"`
	VehicleID       string `json:"vehicleId"`
	SpotID          string `json:"spotId" validate:"required"`
	DurationMinutes int    `json:"durationMinutes" validate:"required,gt=0,lte=1440"`
}

// ActiveReservation is an active reservation with its countdown at read time.
type ActiveReservation struct {
	models.Reservation
	RemainingSeconds int64 `json:"remainingSeconds"`
	Expired          bool  `json:"expired"`
}

// ReservationService runs the reserve saga: hold the spot, debit the wallet, persist the
// reservation, release the hold and start the countdown. A failed step undoes the earlier ones.
type ReservationService struct {
	ledger       *LedgerService
	reservations ReservationStore
	guard        SpotGuard
	timers       Timers
	notifier     EventNotifier
	clock        timer.Clock
	cfg          ReservationConfig
	logger       *zap.Logger
	metrics      counters
}

// NewReservationService wires the saga. timers may be nil until SetTimers is called.
func NewReservationService(
	ledger *LedgerService,
	reservations ReservationStore,
	spotGuard SpotGuard,
	timers Timers,
	notifier EventNotifier,
	clock timer.Clock,
	cfg ReservationConfig,
	logger *zap.Logger,
) *ReservationService {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 5 * time.Second
	}
	if cfg.CompensationTimeout <= 0 {
		cfg.CompensationTimeout = 10 * time.Second
	}
	return &ReservationService{
		ledger:       ledger,
		reservations: reservations,
		guard:        spotGuard,
		timers:       timers,
		notifier:     notifier,
		clock:        clock,
		cfg:          cfg,
		logger:       logger.Named("reservations"),
		metrics:      newCounters(),
	}
}

// SetTimers attaches the scheduler. The scheduler calls back into HandleTimerEvent, so it is
// built after the service.
func (s *ReservationService) SetTimers(timers Timers) {
	s.timers = timers
}

// Price is pricePerHour prorated to minutes, rounded half away from zero to minor units. It
// returns 0 when the result is above models.MaxAmount, which the caller rejects as unpriced.
func Price(pricePerHour int64, minutes int) int64 {
	price := decimal.NewFromInt(pricePerHour).
		Mul(decimal.NewFromInt(int64(minutes))).
		Div(decimal.NewFromInt(60)).
		Round(0)
	if price.GreaterThan(decimal.NewFromInt(models.MaxAmount)) {
		return 0
	}
	return price.IntPart()
}

// Reserve books a spot. On success exactly one debit and one active reservation exist; on
// failure the net effect on the wallet is zero, or errs.ErrInvariantViolation is returned.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*models.Reservation, error) {
	ctx, span := tracer.Start(ctx, "reservation.reserve", trace.WithAttributes(
		attribute.String("spot.id", req.SpotID),
		attribute.Int("reservation.duration_minutes", req.DurationMinutes),
	))
	defer span.End()

	res, err := s.reserve(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reserve failed")
		s.metrics.reservationsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", failureReason(err))))
		s.logger.Info("reservation rejected",
			zap.String("account_id", req.AccountID),
			zap.String("spot_id", req.SpotID),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.String("reservation.id", res.ID.String()))
	s.metrics.reservationsCreated.Add(ctx, 1)
	s.logger.Info("reservation confirmed",
		zap.String("reservation_id", res.ID.String()),
		zap.String("account_id", res.AccountID),
		zap.String("spot_id", res.SpotID),
		zap.Int64("price", res.Price),
		zap.Time("end_time", res.EndTime),
	)
	return res, nil
}

func (s *ReservationService) reserve(ctx context.Context, req ReserveRequest) (*models.Reservation, error) {
	if err := validateReserve(req); err != nil {
		return nil, err
	}

	hold, err := s.guard.TryHold(ctx, req.SpotID)
	if err != nil {
		return nil, err
	}

	price := Price(hold.Spot.PricePerHour, req.DurationMinutes)
	if price <= 0 {
		s.guard.Release(ctx, hold)
		return nil, fmt.Errorf("spot %s has no valid price: %w", req.SpotID, errs.ErrInvalidInput)
	}

	id := uuid.New()
	debit, err := s.debit(ctx, id, req, price)
	if err != nil {
		s.guard.Release(ctx, hold)
		return nil, err
	}

	start := s.clock.Now()
	res := &models.Reservation{
		ID:              id,
		AccountID:       req.AccountID,
		VehicleID:       strings.TrimSpace(req.VehicleID),
		SpotID:          req.SpotID,
		TransactionID:   debit.ID,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(req.DurationMinutes) * time.Minute),
		DurationMinutes: req.DurationMinutes,
		Price:           price,
		Status:          models.ReservationActive,
	}
	if err := s.persist(ctx, hold, res); err != nil {
		s.guard.Release(ctx, hold)
		return nil, err
	}

	s.guard.Release(ctx, hold)
	s.timers.Start(*res)
	return res, nil
}

func validateReserve(req ReserveRequest) error {
	switch {
	case strings.TrimSpace(req.VehicleID) == "":
		return errs.ErrVehicleRequired
	case strings.TrimSpace(req.AccountID) == "":
		return fmt.Errorf("account id required: %w", errs.ErrInvalidInput)
	case strings.TrimSpace(req.SpotID) == "":
		return fmt.Errorf("spot id required: %w", errs.ErrInvalidInput)
	case req.DurationMinutes <= 0 || req.DurationMinutes > MaxDurationMinutes:
		return fmt.Errorf("duration %d out of range: %w", req.DurationMinutes, errs.ErrInvalidInput)
	}
	return nil
}

func (s *ReservationService) debit(ctx context.Context, id uuid.UUID, req ReserveRequest, price int64) (*models.Transaction, error) {
	stepCtx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
	defer cancel()

	tx, err := s.ledger.Apply(stepCtx, models.ApplyRequest{
		AccountID:     req.AccountID,
		Amount:        -price,
		Kind:          models.TransactionDebit,
		Description:   fmt.Sprintf("Reservation of spot %s (%d min)", req.SpotID, req.DurationMinutes),
		ReservationID: &id,
	})
	if err == nil {
		return tx, nil
	}
	if errs.IsClientError(err) {
		return nil, err
	}

	// the debit may have committed before the fault surfaced
	if cerr := s.compensate(ctx, id, req.AccountID, false); cerr != nil {
		return nil, s.violation(ctx, id, "debit", err, cerr)
	}
	return nil, errs.Unavailable("reservation.debit", err)
}

func (s *ReservationService) persist(ctx context.Context, hold *guard.Hold, res *models.Reservation) error {
	stepCtx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
	defer cancel()

	err := s.reservations.Create(stepCtx, res)
	if err == nil {
		return nil
	}

	s.logger.Warn("reservation persist failed, compensating",
		zap.String("reservation_id", res.ID.String()),
		zap.String("spot_id", hold.SpotID),
		zap.Error(err),
	)
	if cerr := s.compensate(ctx, res.ID, res.AccountID, true); cerr != nil {
		return s.violation(ctx, res.ID, "persist", err, cerr)
	}
	return errs.Unavailable("reservation.persist", err)
}

// compensate runs on its own deadline so a cancelled request still gets its refund. When
// cancelRow is set a row that was written despite the reported failure is cancelled first.
func (s *ReservationService) compensate(ctx context.Context, id uuid.UUID, accountID string, cancelRow bool) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CompensationTimeout)
	defer cancel()

	cctx, span := tracer.Start(cctx, "reservation.compensate", trace.WithAttributes(
		attribute.String("reservation.id", id.String()),
	))
	defer span.End()

	if cancelRow {
		if _, err := s.reservations.Transition(cctx, id, models.ReservationCancelled); err != nil && !errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("cancel reservation: %w", err)
		}
	}

	txs, err := s.ledger.ReservationTransactions(cctx, id)
	if err != nil {
		return fmt.Errorf("read reservation transactions: %w", err)
	}
	var net int64
	for _, t := range txs {
		net += t.Amount
	}
	if net >= 0 {
		return nil
	}

	refund, err := s.ledger.Apply(cctx, models.ApplyRequest{
		AccountID:     accountID,
		Amount:        -net,
		Kind:          models.TransactionRefund,
		Description:   fmt.Sprintf("Refund for reservation %s", id),
		ReservationID: &id,
	})
	if err != nil {
		return fmt.Errorf("refund: %w", err)
	}

	s.metrics.compensations.Add(cctx, 1)
	s.logger.Info("reservation debit refunded",
		zap.String("reservation_id", id.String()),
		zap.String("transaction_id", refund.ID.String()),
		zap.Int64("amount", refund.Amount),
	)
	return nil
}

func (s *ReservationService) violation(ctx context.Context, id uuid.UUID, step string, cause, compErr error) error {
	s.metrics.invariantViolations.Add(ctx, 1)
	s.logger.Error("reservation compensation failed, manual reconciliation required",
		zap.String("reservation_id", id.String()),
		zap.String("step", step),
		zap.NamedError("cause", cause),
		zap.NamedError("compensation_error", compErr),
	)
	return &errs.InvariantViolationError{ReservationID: id, Step: step, Cause: cause, CompensationErr: compErr}
}

// EndReservation completes an active reservation early. Ending a reservation that is already
// terminal returns it unchanged. Another account's reservation is reported as not found.
func (s *ReservationService) EndReservation(ctx context.Context, accountID string, id uuid.UUID) (*models.Reservation, error) {
	res, err := s.reservations.Get(ctx, id)
	if err != nil {
		return nil, errs.Unavailable("reservation.get", err)
	}
	if res.AccountID != accountID {
		return nil, fmt.Errorf("reservation %s: %w", id, errs.ErrNotFound)
	}
	if res.Status.Terminal() {
		return res, nil
	}

	ended, err := s.reservations.Transition(ctx, id, models.ReservationCompleted)
	if err != nil {
		return nil, errs.Unavailable("reservation.end", err)
	}
	s.timers.Stop(id)

	s.metrics.reservationsClosed.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(ended.Status))))
	s.logger.Info("reservation ended",
		zap.String("reservation_id", id.String()),
		zap.String("status", string(ended.Status)),
	)
	return ended, nil
}

// History lists the account's reservations, newest first.
func (s *ReservationService) History(ctx context.Context, accountID string, limit int) ([]models.Reservation, error) {
	if limit <= 0 || limit > WalletLimit {
		limit = WalletLimit
	}
	out, err := s.reservations.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, errs.Unavailable("reservation.history", err)
	}
	if out == nil {
		out = []models.Reservation{}
	}
	return out, nil
}

// Active lists the account's active reservations with their remaining time.
func (s *ReservationService) Active(ctx context.Context, accountID string) ([]ActiveReservation, error) {
	list, err := s.reservations.ActiveByAccount(ctx, accountID)
	if err != nil {
		return nil, errs.Unavailable("reservation.active", err)
	}
	now := s.clock.Now()
	out := make([]ActiveReservation, 0, len(list))
	for _, res := range list {
		remaining := res.Remaining(now)
		out = append(out, ActiveReservation{
			Reservation:      res,
			RemainingSeconds: int64(remaining / time.Second),
			Expired:          remaining == 0,
		})
	}
	return out, nil
}

// RestoreTimers re-arms the countdown of every active reservation after a restart. Stages
// whose deadline passed while the process was down are not replayed; reservations that
// expired meanwhile get the expiry policy applied without a notification.
func (s *ReservationService) RestoreTimers(ctx context.Context) (int, error) {
	active, err := s.reservations.ListActive(ctx)
	if err != nil {
		return 0, errs.Unavailable("reservation.restore", err)
	}

	restored := 0
	for _, res := range active {
		if s.timers.Start(res) > 0 {
			restored++
			continue
		}
		if s.cfg.AutoCompleteOnExpiry {
			s.completeExpired(ctx, res.ID)
		}
	}

	s.logger.Info("reservation timers restored",
		zap.Int("active", len(active)),
		zap.Int("armed", restored),
	)
	return restored, nil
}

// HandleTimerEvent is the scheduler callback: it notifies the owner and, at expiry, applies
// the expiry policy.
func (s *ReservationService) HandleTimerEvent(ev timer.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CompensationTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, ev.Notification()); err != nil {
		s.logger.Warn("reservation notification failed",
			zap.String("reservation_id", ev.ReservationID.String()),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}

	if ev.Kind == models.NotificationExpired && s.cfg.AutoCompleteOnExpiry {
		s.completeExpired(ctx, ev.ReservationID)
	}
}

func (s *ReservationService) completeExpired(ctx context.Context, id uuid.UUID) {
	res, err := s.reservations.Transition(ctx, id, models.ReservationCompleted)
	if err != nil {
		s.logger.Warn("expired reservation not completed", zap.String("reservation_id", id.String()), zap.Error(err))
		return
	}
	s.metrics.reservationsClosed.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(res.Status))))
	s.logger.Info("reservation expired",
		zap.String("reservation_id", id.String()),
		zap.String("status", string(res.Status)),
	)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, errs.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, errs.ErrSpotUnavailable):
		return "spot_unavailable"
	case errors.Is(err, errs.ErrVehicleRequired), errors.Is(err, errs.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, errs.ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, errs.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}
