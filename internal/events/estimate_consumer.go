package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/viagem-certa/service-trip/internal/domain"
	tripDomain "github.com/viagem-certa/service-trip/internal/domain/trip"
	"github.com/viagem-certa/service-trip/internal/kafka"
	"go.uber.org/zap"
)

// EstimateBackfiller prices a trip that was requested without an estimate.
// *application.TripService satisfies it.
type EstimateBackfiller interface {
	BackfillEstimate(ctx context.Context, tripID uuid.UUID, origin, dest tripDomain.Endpoint) (bool, error)
}

// EstimateBackfillConsumer listens to trip events and retries the estimate
// for trips that were saved without a price.
type EstimateBackfillConsumer struct {
	consumer *kafka.Consumer
	service  EstimateBackfiller
	logger   *zap.Logger
}

// NewEstimateBackfillConsumer creates a new EstimateBackfillConsumer.
func NewEstimateBackfillConsumer(
	brokers []string,
	groupID string,
	service EstimateBackfiller,
	logger *zap.Logger,
) *EstimateBackfillConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, tripDomain.TopicTripEvents, logger)
	return &EstimateBackfillConsumer{
		consumer: consumer,
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming trip events. This blocks until the context is cancelled.
func (c *EstimateBackfillConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *EstimateBackfillConsumer) Close() error {
	return c.consumer.Close()
}

func (c *EstimateBackfillConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from trip topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case tripDomain.EventRequested:
		return c.handleRequested(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled trip event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *EstimateBackfillConsumer) handleRequested(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt tripDomain.RequestedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse RequestedEvent data",
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	if evt.EstimatedPrice != nil {
		return nil
	}

	c.logger.Info("backfilling estimate for unpriced trip",
		zap.String("trip_id", evt.TripID.String()),
		zap.String("trip_number", evt.TripNumber),
	)

	attached, err := c.service.BackfillEstimate(ctx, evt.TripID, evt.Origin, evt.Destination)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			c.logger.Warn("trip vanished before backfill",
				zap.String("trip_id", evt.TripID.String()),
			)
			return nil
		}
		c.logger.Error("failed to backfill estimate",
			zap.String("trip_id", evt.TripID.String()),
			zap.Error(err),
		)
		return err
	}

	if attached {
		c.logger.Info("estimate attached to trip",
			zap.String("trip_id", evt.TripID.String()),
		)
	}
	return nil
}
