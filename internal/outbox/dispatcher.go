package outbox

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/auctionhouse/internal/repositories"
)

// Sender publishes one message body to the bus.
type Sender interface {
	SendMessage(ctx context.Context, body interface{}) error
}

// Dispatcher drains pending outbox messages to the bus. Delivery is
// at-least-once: a crash after SendMessage but before MarkSent replays the
// message, and consumers deduplicate by event id.
type Dispatcher struct {
	repo        repositories.OutboxRepository
	sender      Sender
	batchSize   int
	maxAttempts int
}

// NewDispatcher creates a new outbox dispatcher
func NewDispatcher(repo repositories.OutboxRepository, sender Sender, batchSize, maxAttempts int) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Dispatcher{
		repo:        repo,
		sender:      sender,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// Dispatch sends one batch of pending messages. A failing message only
// burns one of its own attempts; the rest of the batch still goes out.
// Backoff between attempts comes from the scheduling interval.
func (d *Dispatcher) Dispatch(ctx context.Context) error {
	msgs, err := d.repo.FetchPending(ctx, d.batchSize)
	if err != nil {
		return errors.Wrap(err, "failed to fetch pending outbox messages")
	}

	if len(msgs) == 0 {
		return nil
	}

	log.Debug().Int("count", len(msgs)).Msg("Dispatching outbox messages")

	for _, msg := range msgs {
		if ctx.Err() != nil {
			return nil
		}

		if err := d.sender.SendMessage(ctx, json.RawMessage(msg.Payload)); err != nil {
			log.Warn().Err(err).
				Str("event_id", msg.ID.String()).
				Str("event_type", msg.EventType).
				Int("attempts", msg.Attempts+1).
				Msg("Failed to publish outbox message")
			if markErr := d.repo.MarkFailure(ctx, msg.ID, err, d.maxAttempts); markErr != nil {
				log.Error().Err(markErr).Str("event_id", msg.ID.String()).Msg("Failed to record outbox failure")
			}
			continue
		}

		if err := d.repo.MarkSent(ctx, msg.ID); err != nil {
			log.Error().Err(err).Str("event_id", msg.ID.String()).Msg("Failed to mark outbox message as sent")
			continue
		}

		log.Info().
			Str("event_id", msg.ID.String()).
			Str("event_type", msg.EventType).
			Str("aggregate_id", msg.AggregateID).
			Msg("Outbox message published")
	}

	return nil
}
