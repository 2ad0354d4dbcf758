package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/auctionhouse/internal/models"
	"example.com/auctionhouse/internal/repositories"
)

// UpdateAuctionParams carries the mutable auction terms; nil fields are
// left unchanged.
type UpdateAuctionParams struct {
	ReservePrice *int
	AuctionEnd   *time.Time
}

// AuctionService owns the authoritative auction records. Every mutation
// writes its event to the outbox in the same transaction.
type AuctionService struct {
	auctions repositories.AuctionRepository
}

// NewAuctionService creates a new auction service
func NewAuctionService(auctions repositories.AuctionRepository) *AuctionService {
	return &AuctionService{auctions: auctions}
}

// CreateAuction opens a new auction. A zero reserve price means no reserve.
func (s *AuctionService) CreateAuction(ctx context.Context, seller string, reservePrice int, auctionEnd time.Time) (*models.Auction, error) {
	if seller == "" {
		return nil, errors.New("seller is required")
	}
	if reservePrice < 0 {
		return nil, errors.New("reserve price cannot be negative")
	}

	auction := &models.Auction{
		ID:           uuid.New(),
		Seller:       seller,
		ReservePrice: reservePrice,
		AuctionEnd:   auctionEnd.UTC(),
		Status:       models.AuctionOpen,
	}

	msg, err := models.NewOutboxMessage(auction.ID.String(), models.EventAuctionCreated, models.AuctionCreatedEvent{
		ID:           auction.ID,
		Seller:       auction.Seller,
		ReservePrice: auction.ReservePrice,
		AuctionEnd:   auction.AuctionEnd,
	})
	if err != nil {
		return nil, err
	}

	if err := s.auctions.CreateWithOutbox(ctx, auction, msg); err != nil {
		return nil, err
	}

	log.Info().
		Str("auction_id", auction.ID.String()).
		Str("seller", seller).
		Int("reserve_price", reservePrice).
		Time("auction_end", auction.AuctionEnd).
		Msg("Auction created")

	return auction, nil
}

// UpdateAuction changes the auction terms while it is still open. No event
// is published when nothing actually changed.
func (s *AuctionService) UpdateAuction(ctx context.Context, id uuid.UUID, params UpdateAuctionParams) (*models.Auction, error) {
	auction, err := s.auctions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, err
	}

	if auction.Status.Terminal() {
		return nil, ErrAuctionClosed
	}

	changed := false
	if params.ReservePrice != nil && *params.ReservePrice != auction.ReservePrice {
		if *params.ReservePrice < 0 {
			return nil, errors.New("reserve price cannot be negative")
		}
		auction.ReservePrice = *params.ReservePrice
		changed = true
	}
	if params.AuctionEnd != nil && !params.AuctionEnd.UTC().Equal(auction.AuctionEnd) {
		auction.AuctionEnd = params.AuctionEnd.UTC()
		changed = true
	}

	if !changed {
		return auction, nil
	}

	auction.UpdatedAt = time.Now().UTC()

	msg, err := models.NewOutboxMessage(auction.ID.String(), models.EventAuctionUpdated, models.AuctionUpdatedEvent{
		ID:           auction.ID,
		ReservePrice: auction.ReservePrice,
		AuctionEnd:   auction.AuctionEnd,
		UpdatedAt:    auction.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}

	if err := s.auctions.UpdateWithOutbox(ctx, auction, msg); err != nil {
		return nil, err
	}

	log.Info().Str("auction_id", auction.ID.String()).Msg("Auction updated")

	return auction, nil
}

// DeleteAuction removes an auction and tells downstream projections to drop it.
func (s *AuctionService) DeleteAuction(ctx context.Context, id uuid.UUID) error {
	msg, err := models.NewOutboxMessage(id.String(), models.EventAuctionDeleted, models.AuctionDeletedEvent{ID: id})
	if err != nil {
		return err
	}

	if err := s.auctions.DeleteWithOutbox(ctx, id, msg); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrAuctionNotFound
		}
		return err
	}

	log.Info().Str("auction_id", id.String()).Msg("Auction deleted")

	return nil
}

// GetAuction gets an auction by ID
func (s *AuctionService) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	auction, err := s.auctions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, err
	}
	return auction, nil
}

// ListUpdatedSince is the pull-based catch-up query downstream projections
// use to reseed themselves after missing events.
func (s *AuctionService) ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]models.Auction, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	return s.auctions.ListUpdatedSince(ctx, since, limit)
}
