package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/auctionhouse/internal/models"
)

// AuctionRepository is the data access interface for the authoritative
// auction record store. Mutations that must be observed by other services
// take an outbox message persisted in the same transaction.
type AuctionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]models.Auction, error)
	ListEndedOpen(ctx context.Context, limit int) ([]models.Auction, error)
	CreateWithOutbox(ctx context.Context, auction *models.Auction, msg *models.OutboxMessage) error
	UpdateWithOutbox(ctx context.Context, auction *models.Auction, msg *models.OutboxMessage) error
	DeleteWithOutbox(ctx context.Context, id uuid.UUID, msg *models.OutboxMessage) error
	RaiseHighBid(ctx context.Context, id uuid.UUID, amount int) error
	Finish(ctx context.Context, id uuid.UUID, status models.AuctionStatus, winner *string, soldAmount *int, msg *models.OutboxMessage) error
}

// auctionRepository implements AuctionRepository on GORM.
type auctionRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(db *gorm.DB, readOnlyDB *gorm.DB) AuctionRepository {
	return &auctionRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetByID gets an auction by ID
func (r *auctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	var auction models.Auction
	err := r.readOnlyDB.WithContext(ctx).First(&auction, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get auction by ID")
	}
	return &auction, nil
}

// ListUpdatedSince returns auctions touched after the given instant, oldest
// first. Downstream projections use this as the pull-based catch-up query.
func (r *auctionRepository) ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]models.Auction, error) {
	var auctions []models.Auction
	err := r.readOnlyDB.WithContext(ctx).
		Where("updated_at > ?", since).
		Order("updated_at ASC").
		Limit(limit).
		Find(&auctions).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list updated auctions")
	}
	return auctions, nil
}

// ListEndedOpen returns auctions whose end time has passed but that are
// still Open. The finisher scans these each tick.
func (r *auctionRepository) ListEndedOpen(ctx context.Context, limit int) ([]models.Auction, error) {
	var auctions []models.Auction
	err := r.readOnlyDB.WithContext(ctx).
		Where("auction_end <= ? AND status = ?", time.Now().UTC(), models.AuctionOpen).
		Order("auction_end ASC").
		Limit(limit).
		Find(&auctions).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list ended open auctions")
	}
	return auctions, nil
}

// CreateWithOutbox inserts the auction and its created event atomically.
func (r *auctionRepository) CreateWithOutbox(ctx context.Context, auction *models.Auction, msg *models.OutboxMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(auction).Error; err != nil {
			return errors.Wrap(err, "failed to create auction")
		}
		if err := tx.Create(msg).Error; err != nil {
			return errors.Wrap(err, "failed to append auction created event to outbox")
		}
		return nil
	})
}

// UpdateWithOutbox saves the mutated auction and its updated event atomically.
func (r *auctionRepository) UpdateWithOutbox(ctx context.Context, auction *models.Auction, msg *models.OutboxMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(auction).Error; err != nil {
			return errors.Wrap(err, "failed to update auction")
		}
		if err := tx.Create(msg).Error; err != nil {
			return errors.Wrap(err, "failed to append auction updated event to outbox")
		}
		return nil
	})
}

// DeleteWithOutbox removes the auction and records its deleted event atomically.
func (r *auctionRepository) DeleteWithOutbox(ctx context.Context, id uuid.UUID, msg *models.OutboxMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Auction{}, "id = ?", id)
		if result.Error != nil {
			return errors.Wrap(result.Error, "failed to delete auction")
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Create(msg).Error; err != nil {
			return errors.Wrap(err, "failed to append auction deleted event to outbox")
		}
		return nil
	})
}

// RaiseHighBid updates the denormalized high bid cache. The guard makes the
// write idempotent and safe under out-of-order delivery: the cached value
// only ever goes up.
func (r *auctionRepository) RaiseHighBid(ctx context.Context, id uuid.UUID, amount int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ? AND (current_high_bid IS NULL OR current_high_bid < ?)", id, amount).
		Update("current_high_bid", amount)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to raise current high bid")
	}
	// Zero rows means the auction is unknown here or the cached bid already
	// exceeds the event's amount; both are fine to skip.
	return nil
}

// Finish applies the terminal transition and appends the completion event in
// one transaction. The status predicate is the optimistic concurrency check:
// a writer that finds the auction no longer Open gets ErrConflict and must
// not publish.
func (r *auctionRepository) Finish(ctx context.Context, id uuid.UUID, status models.AuctionStatus, winner *string, soldAmount *int, msg *models.OutboxMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Auction{}).
			Where("id = ? AND status = ?", id, models.AuctionOpen).
			Updates(map[string]interface{}{
				"status":      status,
				"winner":      winner,
				"sold_amount": soldAmount,
			})
		if result.Error != nil {
			return errors.Wrap(result.Error, "failed to finish auction")
		}
		if result.RowsAffected == 0 {
			return ErrConflict
		}
		if err := tx.Create(msg).Error; err != nil {
			return errors.Wrap(err, "failed to append auction finished event to outbox")
		}
		return nil
	})
}
