package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"

	"example.com/auctionhouse/config"
)

// MessageHandler applies one received message. A nil return settles the
// message; an error abandons it for redelivery until the delivery count is
// exhausted, after which the message is dead-lettered.
type MessageHandler func(ctx context.Context, message *azservicebus.ReceivedMessage) error

// ServiceBusClient is an interface for Azure Service Bus operations
type ServiceBusClient interface {
	SendMessage(ctx context.Context, body interface{}) error
	ProcessMessages(ctx context.Context, handler MessageHandler) error
	Close() error
}

// serviceBusClient implements the ServiceBusClient interface
type serviceBusClient struct {
	client           *azservicebus.Client
	sender           *azservicebus.Sender
	queueName        string
	maxDeliveryCount int
}

// NewServiceBusClient creates a new Azure Service Bus client bound to one queue
func NewServiceBusClient(cfg config.ServiceBusConfig, queueName string) (ServiceBusClient, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
	}

	sender, err := client.NewSender(queueName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus sender: %w", err)
	}

	maxDelivery := cfg.MaxDeliveryCount
	if maxDelivery <= 0 {
		maxDelivery = 5
	}

	return &serviceBusClient{
		client:           client,
		sender:           sender,
		queueName:        queueName,
		maxDeliveryCount: maxDelivery,
	}, nil
}

// SendMessage sends a message to the Service Bus queue
func (s *serviceBusClient) SendMessage(ctx context.Context, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message body: %w", err)
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"source": "auctionhouse",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	return s.sender.SendMessage(ctx, msg, nil)
}

// ProcessMessages receives from the queue until the context is cancelled,
// settling each message according to the handler's outcome.
func (s *serviceBusClient) ProcessMessages(ctx context.Context, handler MessageHandler) error {
	receiver, err := s.client.NewReceiverForQueue(s.queueName, nil)
	if err != nil {
		return fmt.Errorf("failed to create Service Bus receiver: %w", err)
	}
	defer receiver.Close(context.Background())

	for {
		messages, err := receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Str("queue", s.queueName).Msg("Failed to receive messages")
			continue
		}

		for _, message := range messages {
			s.settle(ctx, receiver, message, handler(ctx, message))
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *serviceBusClient) settle(ctx context.Context, receiver *azservicebus.Receiver, message *azservicebus.ReceivedMessage, handlerErr error) {
	if handlerErr == nil {
		if err := receiver.CompleteMessage(ctx, message, nil); err != nil {
			// The message stays locked and is redelivered; the consumer's
			// inbox dedup makes the replay harmless.
			log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to complete message")
		}
		return
	}

	if s.deliveryExhausted(message) {
		reason := "processing failed after max delivery attempts"
		description := handlerErr.Error()
		log.Error().Err(handlerErr).
			Str("message_id", message.MessageID).
			Uint32("delivery_count", message.DeliveryCount).
			Msg("Dead-lettering message")
		if err := receiver.DeadLetterMessage(ctx, message, &azservicebus.DeadLetterOptions{
			Reason:           &reason,
			ErrorDescription: &description,
		}); err != nil {
			log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to dead-letter message")
		}
		return
	}

	log.Warn().Err(handlerErr).
		Str("message_id", message.MessageID).
		Uint32("delivery_count", message.DeliveryCount).
		Msg("Abandoning message for redelivery")
	if err := receiver.AbandonMessage(ctx, message, nil); err != nil {
		log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to abandon message")
	}
}

// deliveryExhausted reports whether this delivery is the message's last
// processing attempt. DeliveryCount already includes the current delivery
// (1 on first receipt), so the count is compared directly.
func (s *serviceBusClient) deliveryExhausted(message *azservicebus.ReceivedMessage) bool {
	return int(message.DeliveryCount) >= s.maxDeliveryCount
}

// Close closes the Service Bus client
func (s *serviceBusClient) Close() error {
	if s.sender != nil {
		if err := s.sender.Close(context.Background()); err != nil {
			return err
		}
	}

	if s.client != nil {
		return s.client.Close(context.Background())
	}

	return nil
}
