package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/auctionhouse/internal/models"
)

// OutboxRepository provides access to pending event publications.
type OutboxRepository interface {
	FetchPending(ctx context.Context, limit int) ([]models.OutboxMessage, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailure(ctx context.Context, id uuid.UUID, attemptErr error, maxAttempts int) error
}

// outboxRepository implements OutboxRepository on GORM.
type outboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

// FetchPending returns pending messages oldest first.
func (r *outboxRepository) FetchPending(ctx context.Context, limit int) ([]models.OutboxMessage, error) {
	var msgs []models.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", models.OutboxPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch pending outbox messages")
	}
	return msgs, nil
}

// MarkSent records a successful publication.
func (r *outboxRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  models.OutboxSent,
			"sent_at": &now,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to mark outbox message as sent")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailure bumps the attempt count and, once maxAttempts is exhausted,
// parks the message as failed for operator replay instead of retrying it
// forever.
func (r *outboxRepository) MarkFailure(ctx context.Context, id uuid.UUID, attemptErr error, maxAttempts int) error {
	errMsg := attemptErr.Error()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg models.OutboxMessage
		if err := tx.First(&msg, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return errors.Wrap(err, "failed to load outbox message")
		}

		msg.Attempts++
		msg.LastError = &errMsg
		if msg.Attempts >= maxAttempts {
			msg.Status = models.OutboxFailed
		}

		if err := tx.Save(&msg).Error; err != nil {
			return errors.Wrap(err, "failed to record outbox failure")
		}
		return nil
	})
}
