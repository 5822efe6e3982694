package memory

import (
	"context"
	"sync"

	"vaggo/backend/services/reservation-service/internal/errs"
	"vaggo/backend/services/reservation-service/internal/models"
)

// SpotCatalog is a seeded, in-process spot catalog.
type SpotCatalog struct {
	mu    sync.RWMutex
	spots map[string]models.Spot
}

// NewSpotCatalog returns a catalog holding spots.
func NewSpotCatalog(spots ...models.Spot) *SpotCatalog {
	c := &SpotCatalog{spots: make(map[string]models.Spot, len(spots))}
	for _, s := range spots {
		c.spots[s.ID] = s
	}
	return c
}

// Put inserts or replaces a spot.
func (c *SpotCatalog) Put(spot models.Spot) {
	c.mu.Lock()
	c.spots[spot.ID] = spot
	c.mu.Unlock()
}

// GetSpot returns a copy of the spot or errs.ErrNotFound.
func (c *SpotCatalog) GetSpot(ctx context.Context, id string) (*models.Spot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	spot, ok := c.spots[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &spot, nil
}
