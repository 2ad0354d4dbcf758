package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/auctionhouse/internal/models"
)

// InboxRepository deduplicates consumed events by their envelope id.
type InboxRepository interface {
	// MarkProcessed records the event id. It returns false when the id was
	// already recorded, meaning the event is a redelivery and must be skipped.
	MarkProcessed(ctx context.Context, eventID uuid.UUID, eventType string) (bool, error)
}

// inboxRepository implements InboxRepository on GORM.
type inboxRepository struct {
	db *gorm.DB
}

// NewInboxRepository creates a new inbox repository
func NewInboxRepository(db *gorm.DB) InboxRepository {
	return &inboxRepository{db: db}
}

// MarkProcessed inserts the event id, relying on the primary key conflict to
// detect redeliveries.
func (r *inboxRepository) MarkProcessed(ctx context.Context, eventID uuid.UUID, eventType string) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.InboxEvent{
			EventID:   eventID,
			EventType: eventType,
		})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to record inbox event")
	}
	return result.RowsAffected > 0, nil
}
