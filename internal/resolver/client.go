package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/auctionhouse/config"
	"example.com/auctionhouse/internal/models"
)

// Resolver errors. Callers must treat ErrUnavailable as "bid not evaluable"
// and reject the submission; auction terms are never defaulted.
var (
	ErrNotFound    = errors.New("auction not found")
	ErrUnavailable = errors.New("auction lookup unavailable")
)

// snapshotResponse is the wire shape of the internal auction lookup.
type snapshotResponse struct {
	ID           uuid.UUID `json:"id"`
	Seller       string    `json:"seller"`
	ReservePrice int       `json:"reservePrice"`
	AuctionEnd   time.Time `json:"auctionEnd"`
}

// Client performs the synchronous point query against the auction service's
// read interface, used only when the local projection lacks an auction.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
}

// NewClient creates a new resolver client
func NewClient(cfg config.ResolverConfig) *Client {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		httpClient:  &http.Client{Timeout: timeout},
		maxAttempts: maxAttempts,
		backoff:     cfg.Backoff,
	}
}

// Resolve fetches the auction's terms from the authoritative service.
// Not-found is definitive and is not retried; transient failures are retried
// up to the configured attempts before surfacing ErrUnavailable.
func (c *Client) Resolve(ctx context.Context, id uuid.UUID) (*models.AuctionSnapshot, error) {
	url := fmt.Sprintf("%s/internal/auctions/%s", c.baseURL, id.String())

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ErrUnavailable, ctx.Err().Error())
			case <-time.After(c.backoff * time.Duration(attempt-1)):
			}
		}

		snapshot, err := c.fetch(ctx, url)
		if err == nil {
			return snapshot, nil
		}
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}

		lastErr = err
		log.Warn().Err(err).
			Str("auction_id", id.String()).
			Int("attempt", attempt).
			Msg("Auction lookup attempt failed")
	}

	return nil, errors.Wrapf(ErrUnavailable, "resolve auction %s: %v", id, lastErr)
}

func (c *Client) fetch(ctx context.Context, url string) (*models.AuctionSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build lookup request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "lookup request failed")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body snapshotResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, errors.Wrap(err, "failed to decode lookup response")
		}
		return &models.AuctionSnapshot{
			ID:           body.ID,
			Seller:       body.Seller,
			ReservePrice: body.ReservePrice,
			AuctionEnd:   body.AuctionEnd,
		}, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, errors.Errorf("lookup returned status %d", resp.StatusCode)
	}
}
