package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/auctionhouse/internal/cache"
	"example.com/auctionhouse/internal/models"
	"example.com/auctionhouse/internal/repositories"
	"example.com/auctionhouse/internal/resolver"
)

// AuctionResolver is the synchronous fallback lookup used when the local
// projection does not know an auction yet.
type AuctionResolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (*models.AuctionSnapshot, error)
}

// BidService evaluates and records bids against the bid ledger.
type BidService struct {
	bids      repositories.BidRepository
	snapshots repositories.SnapshotRepository
	resolver  AuctionResolver
	cache     *cache.SnapshotCache
}

// NewBidService creates a new bid service
func NewBidService(
	bids repositories.BidRepository,
	snapshots repositories.SnapshotRepository,
	auctionResolver AuctionResolver,
	snapshotCache *cache.SnapshotCache,
) *BidService {
	if snapshotCache == nil {
		snapshotCache = cache.Disabled()
	}
	return &BidService{
		bids:      bids,
		snapshots: snapshots,
		resolver:  auctionResolver,
		cache:     snapshotCache,
	}
}

// PlaceBid evaluates a bid, appends it to the ledger with its classification
// and, for ranking classifications, publishes a BidPlaced event through the
// outbox. Every bid is recorded for audit, whatever its classification.
func (s *BidService) PlaceBid(ctx context.Context, auctionID uuid.UUID, bidder string, amount int) (*models.Bid, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if bidder == "" {
		return nil, ErrInvalidBidder
	}

	snapshot, err := s.resolveAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if snapshot.Seller == bidder {
		return nil, ErrSelfBid
	}

	now := time.Now().UTC()

	var highestAccepted *int
	// An already-ended auction needs no ranking query; the bid is recorded
	// as Finished either way.
	if !snapshot.Finished && snapshot.AuctionEnd.After(now) {
		highestAccepted, err = s.bids.HighestAcceptedAmount(ctx, auctionID)
		if err != nil {
			return nil, errors.Wrap(ErrUnavailable, err.Error())
		}
	}

	bid := &models.Bid{
		ID:        uuid.New(),
		AuctionID: auctionID,
		Bidder:    bidder,
		Amount:    amount,
		BidTime:   now,
		Status:    ClassifyBid(snapshot, highestAccepted, amount, now),
	}

	var msg *models.OutboxMessage
	if bid.Status.Ranks() {
		msg, err = models.NewOutboxMessage(auctionID.String(), models.EventBidPlaced, models.BidPlacedEvent{
			ID:        bid.ID,
			AuctionID: bid.AuctionID,
			Bidder:    bid.Bidder,
			Amount:    bid.Amount,
			BidTime:   bid.BidTime,
			BidStatus: bid.Status,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := s.bids.AppendWithOutbox(ctx, bid, msg); err != nil {
		return nil, errors.Wrap(err, "failed to record bid")
	}

	log.Info().
		Str("bid_id", bid.ID.String()).
		Str("auction_id", auctionID.String()).
		Str("bidder", bidder).
		Int("amount", amount).
		Str("status", string(bid.Status)).
		Msg("Bid placed")

	return bid, nil
}

// GetBidsForAuction returns all recorded bids for an auction, newest first.
func (s *BidService) GetBidsForAuction(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error) {
	return s.bids.ListForAuction(ctx, auctionID)
}

// resolveAuction finds the auction terms: cache, then the local projection,
// then the synchronous fallback lookup. A successful fallback seeds both the
// projection and the cache so the next bid on the same auction stays local.
func (s *BidService) resolveAuction(ctx context.Context, auctionID uuid.UUID) (*models.AuctionSnapshot, error) {
	if snapshot, err := s.cache.Get(ctx, auctionID); err == nil {
		return snapshot, nil
	}

	snapshot, err := s.snapshots.Get(ctx, auctionID)
	if err == nil {
		if cacheErr := s.cache.Set(ctx, snapshot); cacheErr != nil {
			log.Warn().Err(cacheErr).Str("auction_id", auctionID.String()).Msg("Failed to cache auction snapshot")
		}
		return snapshot, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}

	log.Info().Str("auction_id", auctionID.String()).Msg("Auction missing from local projection, using fallback lookup")

	snapshot, err = s.resolver.Resolve(ctx, auctionID)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}

	if seedErr := s.snapshots.Upsert(ctx, snapshot); seedErr != nil {
		// Evaluation can still proceed with the resolved terms; the next
		// auction event will converge the projection.
		log.Warn().Err(seedErr).Str("auction_id", auctionID.String()).Msg("Failed to seed auction projection")
	}
	if cacheErr := s.cache.Set(ctx, snapshot); cacheErr != nil {
		log.Warn().Err(cacheErr).Str("auction_id", auctionID.String()).Msg("Failed to cache auction snapshot")
	}

	return snapshot, nil
}
