package projections

import (
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/auctionhouse/internal/cache"
	"example.com/auctionhouse/internal/models"
	"example.com/auctionhouse/internal/repositories"
)

// AuctionProjector maintains the bidding side's auction snapshots from the
// auction service's event stream. Application is idempotent: duplicate event
// ids are dropped by the inbox, stale updates by the updatedAt guard, and
// replays of create events converge on the same row.
type AuctionProjector struct {
	inbox     repositories.InboxRepository
	snapshots repositories.SnapshotRepository
	cache     *cache.SnapshotCache
}

// NewAuctionProjector creates a new auction event projector
func NewAuctionProjector(inbox repositories.InboxRepository, snapshots repositories.SnapshotRepository, snapshotCache *cache.SnapshotCache) *AuctionProjector {
	if snapshotCache == nil {
		snapshotCache = cache.Disabled()
	}
	return &AuctionProjector{
		inbox:     inbox,
		snapshots: snapshots,
		cache:     snapshotCache,
	}
}

// Handle applies one received auction event.
func (p *AuctionProjector) Handle(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	var envelope models.Envelope
	if err := json.Unmarshal(message.Body, &envelope); err != nil {
		return errors.Wrap(err, "failed to unmarshal event envelope")
	}

	fresh, err := p.inbox.MarkProcessed(ctx, envelope.EventID, envelope.EventType)
	if err != nil {
		return err
	}
	if !fresh {
		log.Debug().
			Str("event_id", envelope.EventID.String()).
			Str("event_type", envelope.EventType).
			Msg("Skipping redelivered event")
		return nil
	}

	log.Info().
		Str("event_id", envelope.EventID.String()).
		Str("event_type", envelope.EventType).
		Msg("Applying auction event")

	switch envelope.EventType {
	case models.EventAuctionCreated:
		return p.applyCreated(ctx, envelope.Data)
	case models.EventAuctionUpdated:
		return p.applyUpdated(ctx, envelope.Data)
	case models.EventAuctionDeleted:
		return p.applyDeleted(ctx, envelope.Data)
	case models.EventAuctionFinished:
		return p.applyFinished(ctx, envelope.Data)
	default:
		log.Warn().Str("event_type", envelope.EventType).Msg("Unknown auction event type")
		return nil
	}
}

func (p *AuctionProjector) applyCreated(ctx context.Context, data json.RawMessage) error {
	var evt models.AuctionCreatedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return errors.Wrap(err, "failed to unmarshal AuctionCreated")
	}

	snapshot := &models.AuctionSnapshot{
		ID:           evt.ID,
		Seller:       evt.Seller,
		ReservePrice: evt.ReservePrice,
		AuctionEnd:   evt.AuctionEnd,
	}
	if err := p.snapshots.Upsert(ctx, snapshot); err != nil {
		return err
	}

	p.invalidate(ctx, snapshot.ID)
	return nil
}

func (p *AuctionProjector) applyUpdated(ctx context.Context, data json.RawMessage) error {
	var evt models.AuctionUpdatedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return errors.Wrap(err, "failed to unmarshal AuctionUpdated")
	}

	if err := p.snapshots.ApplyUpdate(ctx, evt); err != nil {
		return err
	}

	p.invalidate(ctx, evt.ID)
	return nil
}

func (p *AuctionProjector) applyDeleted(ctx context.Context, data json.RawMessage) error {
	var evt models.AuctionDeletedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return errors.Wrap(err, "failed to unmarshal AuctionDeleted")
	}

	if err := p.snapshots.Delete(ctx, evt.ID); err != nil {
		return err
	}

	p.invalidate(ctx, evt.ID)
	return nil
}

func (p *AuctionProjector) applyFinished(ctx context.Context, data json.RawMessage) error {
	var evt models.AuctionFinishedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return errors.Wrap(err, "failed to unmarshal AuctionFinished")
	}

	if err := p.snapshots.MarkFinished(ctx, evt.AuctionID); err != nil {
		return err
	}

	p.invalidate(ctx, evt.AuctionID)
	return nil
}

func (p *AuctionProjector) invalidate(ctx context.Context, id uuid.UUID) {
	if err := p.cache.Invalidate(ctx, id); err != nil {
		log.Warn().Err(err).Str("auction_id", id.String()).Msg("Failed to invalidate cached snapshot")
	}
}
