package repositories

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/auctionhouse/internal/models"
)

// BidRepository is the data access interface for the append-only bid ledger.
type BidRepository interface {
	AppendWithOutbox(ctx context.Context, bid *models.Bid, msg *models.OutboxMessage) error
	HighestAcceptedAmount(ctx context.Context, auctionID uuid.UUID) (*int, error)
	HighestQualifiedBid(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error)
	ListForAuction(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error)
}

// bidRepository implements BidRepository on GORM.
type bidRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewBidRepository creates a new bid repository
func NewBidRepository(db *gorm.DB, readOnlyDB *gorm.DB) BidRepository {
	return &bidRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// AppendWithOutbox appends a bid to the ledger, together with its BidPlaced
// event when one should be published. msg is nil for classifications that
// never propagate (TooLow, Finished).
func (r *bidRepository) AppendWithOutbox(ctx context.Context, bid *models.Bid, msg *models.OutboxMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(bid).Error; err != nil {
			return errors.Wrap(err, "failed to append bid")
		}
		if msg != nil {
			if err := tx.Create(msg).Error; err != nil {
				return errors.Wrap(err, "failed to append bid placed event to outbox")
			}
		}
		return nil
	})
}

// HighestAcceptedAmount returns the current highest amount among ranking
// bids (Accepted or AcceptedBelowReserve), or nil when none exist. Derived
// from persisted history on every call, never from a mutable counter.
func (r *bidRepository) HighestAcceptedAmount(ctx context.Context, auctionID uuid.UUID) (*int, error) {
	var high sql.NullInt64
	err := r.readOnlyDB.WithContext(ctx).
		Model(&models.Bid{}).
		Where("auction_id = ? AND status IN ?", auctionID,
			[]models.BidStatus{models.BidAccepted, models.BidAcceptedBelowReserve}).
		Select("MAX(amount)").
		Scan(&high).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query highest accepted bid")
	}
	if !high.Valid {
		return nil, nil
	}
	amount := int(high.Int64)
	return &amount, nil
}

// HighestQualifiedBid returns the highest bid that clears the reserve
// (status Accepted), or nil when the auction has no qualifying winner.
func (r *bidRepository) HighestQualifiedBid(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.readOnlyDB.WithContext(ctx).
		Where("auction_id = ? AND status = ?", auctionID, models.BidAccepted).
		Order("amount DESC").
		First(&bid).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to query highest qualified bid")
	}
	return &bid, nil
}

// ListForAuction returns all bids for an auction, newest first.
func (r *bidRepository) ListForAuction(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.readOnlyDB.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("bid_time DESC").
		Find(&bids).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list bids for auction")
	}
	return bids, nil
}
