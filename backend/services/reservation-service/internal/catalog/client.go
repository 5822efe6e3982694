package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"vaggo/backend/services/reservation-service/internal/errs"
	"vaggo/backend/services/reservation-service/internal/models"
)

// Client reads spots from the external catalog service over HTTP.
type Client struct {
	http *resty.Client
}

// NewClient returns a catalog client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{http: c}
}

// GetSpot fetches the spot snapshot. 404 maps to errs.ErrNotFound, other failures to errs.ErrStoreUnavailable.
func (c *Client) GetSpot(ctx context.Context, id string) (*models.Spot, error) {
	var spot models.Spot
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&spot).
		Get("/spots/{id}")
	if err != nil {
		return nil, errs.Unavailable("catalog.get_spot", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("spot %s: %w", id, errs.ErrNotFound)
	case resp.IsError():
		return nil, errs.Unavailable("catalog.get_spot", fmt.Errorf("upstream status %d", resp.StatusCode()))
	}
	if spot.ID == "" {
		spot.ID = id
	}
	return &spot, nil
}
