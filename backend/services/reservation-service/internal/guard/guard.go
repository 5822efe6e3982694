package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vaggo/backend/services/reservation-service/internal/errs"
	"vaggo/backend/services/reservation-service/internal/models"
)

const releaseTimeout = 2 * time.Second

// HoldStore keeps expiring per-spot holds.
type HoldStore interface {
	Acquire(ctx context.Context, spotID, token string) (bool, error)
	Release(ctx context.Context, spotID, token string) error
}

// SpotCatalog reads the spot snapshot.
type SpotCatalog interface {
	GetSpot(ctx context.Context, id string) (*models.Spot, error)
}

// ActiveSpots answers whether a spot already has an active reservation.
type ActiveSpots interface {
	HasActiveForSpot(ctx context.Context, spotID string) (bool, error)
}

// Hold is an outstanding claim on a spot plus the catalog snapshot read while holding it.
type Hold struct {
	SpotID string
	Token  string
	Spot   models.Spot
}

// Guard enforces at most one reservation in flight or active per spot.
type Guard struct {
	holds   HoldStore
	catalog SpotCatalog
	active  ActiveSpots
	logger  *zap.Logger
}

// New builds a guard.
func New(holds HoldStore, catalog SpotCatalog, active ActiveSpots, logger *zap.Logger) *Guard {
	return &Guard{holds: holds, catalog: catalog, active: active, logger: logger.Named("guard")}
}

// TryHold claims the spot first and only then checks the catalog flag and existing
// reservations, so two callers can never both pass the checks.
func (g *Guard) TryHold(ctx context.Context, spotID string) (*Hold, error) {
	hold := &Hold{SpotID: spotID, Token: uuid.NewString()}

	ok, err := g.holds.Acquire(ctx, spotID, hold.Token)
	if err != nil {
		return nil, errs.Unavailable("guard.acquire", err)
	}
	if !ok {
		return nil, fmt.Errorf("spot %s is held: %w", spotID, errs.ErrSpotUnavailable)
	}

	spot, err := g.catalog.GetSpot(ctx, spotID)
	if err != nil {
		g.Release(ctx, hold)
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("spot %s not in catalog: %w", spotID, errs.ErrSpotUnavailable)
		}
		return nil, errs.Unavailable("guard.catalog", err)
	}
	if !spot.Available {
		g.Release(ctx, hold)
		return nil, fmt.Errorf("spot %s disabled: %w", spotID, errs.ErrSpotUnavailable)
	}

	busy, err := g.active.HasActiveForSpot(ctx, spotID)
	if err != nil {
		g.Release(ctx, hold)
		return nil, errs.Unavailable("guard.active", err)
	}
	if busy {
		g.Release(ctx, hold)
		return nil, fmt.Errorf("spot %s reserved: %w", spotID, errs.ErrSpotUnavailable)
	}

	hold.Spot = *spot
	return hold, nil
}

// Release gives the hold back. It runs detached from ctx cancellation and only logs
// failures since the hold expires on its own.
func (g *Guard) Release(ctx context.Context, hold *Hold) {
	if hold == nil {
		return
	}
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := g.holds.Release(releaseCtx, hold.SpotID, hold.Token); err != nil {
		g.logger.Warn("failed to release spot hold", zap.String("spot_id", hold.SpotID), zap.Error(err))
	}
}
