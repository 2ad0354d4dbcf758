package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/auctionhouse/internal/models"
)

// SnapshotRepository stores the bidding side's projection of auction terms.
type SnapshotRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.AuctionSnapshot, error)
	Upsert(ctx context.Context, snapshot *models.AuctionSnapshot) error
	ApplyUpdate(ctx context.Context, evt models.AuctionUpdatedEvent) error
	MarkFinished(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// snapshotRepository implements SnapshotRepository on GORM.
type snapshotRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *gorm.DB, readOnlyDB *gorm.DB) SnapshotRepository {
	return &snapshotRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Get gets a snapshot by auction ID
func (r *snapshotRepository) Get(ctx context.Context, id uuid.UUID) (*models.AuctionSnapshot, error) {
	var snapshot models.AuctionSnapshot
	err := r.readOnlyDB.WithContext(ctx).First(&snapshot, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get auction snapshot")
	}
	return &snapshot, nil
}

// Upsert writes the snapshot keyed by auction id. On conflict only the
// seller is assigned: it is immutable, so replays and fallback-seed races
// converge, while a late AuctionCreated can never roll back terms a newer
// AuctionUpdated already applied. The seller assignment also completes rows
// that ApplyUpdate stubbed in before the create event arrived.
func (r *snapshotRepository) Upsert(ctx context.Context, snapshot *models.AuctionSnapshot) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"seller"}),
		}).
		Create(snapshot).Error
	if err != nil {
		return errors.Wrap(err, "failed to upsert auction snapshot")
	}
	return nil
}

// ApplyUpdate applies new auction terms only when the event is newer than
// what the snapshot already holds, so stale out-of-order deliveries are
// dropped. An update arriving before its create event inserts a stub row
// carrying the terms; the seller is filled in when the create lands.
func (r *snapshotRepository) ApplyUpdate(ctx context.Context, evt models.AuctionUpdatedEvent) error {
	result := r.db.WithContext(ctx).
		Model(&models.AuctionSnapshot{}).
		Where("id = ? AND updated_at < ?", evt.ID, evt.UpdatedAt).
		Updates(map[string]interface{}{
			"reserve_price": evt.ReservePrice,
			"auction_end":   evt.AuctionEnd,
			"updated_at":    evt.UpdatedAt,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to apply auction update to snapshot")
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Zero rows: either the snapshot is already newer, or it does not exist
	// yet. Insert the terms keyed by id so they are not lost; a conflict
	// means the newer row is already there and the event is stale.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&models.AuctionSnapshot{
			ID:           evt.ID,
			ReservePrice: evt.ReservePrice,
			AuctionEnd:   evt.AuctionEnd,
			UpdatedAt:    evt.UpdatedAt,
		}).Error
	if err != nil {
		return errors.Wrap(err, "failed to seed snapshot from auction update")
	}
	return nil
}

// MarkFinished flags the snapshot so the evaluator classifies late bids as
// Finished without consulting the clock.
func (r *snapshotRepository) MarkFinished(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.AuctionSnapshot{}).
		Where("id = ?", id).
		Update("finished", true).Error
	if err != nil {
		return errors.Wrap(err, "failed to mark snapshot as finished")
	}
	return nil
}

// Delete removes a snapshot
func (r *snapshotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Delete(&models.AuctionSnapshot{}, "id = ?", id).Error
	if err != nil {
		return errors.Wrap(err, "failed to delete auction snapshot")
	}
	return nil
}
