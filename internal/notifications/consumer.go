package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/db/models"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/metrics"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/outbox"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/outbox/idempotency"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/outbox/payloads"
)

const anomalyNotificationConsumer = "anomaly-notifications"

type notificationWriter interface {
	Create(ctx context.Context, notification *models.Notification) error
	ExistsForAnomaly(ctx context.Context, anomalyID uuid.UUID) (bool, error)
}

// Consumer turns notification_requested events into stored manager alerts.
type Consumer struct {
	repo         notificationWriter
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	met          *metrics.ConsumerMetrics
	logg         *logger.Logger
}

// NewConsumer builds the anomaly notification consumer.
func NewConsumer(repo notificationWriter, subscription *pubsub.Subscriber, manager *idempotency.Manager, met *metrics.ConsumerMetrics, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		met:          met,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	started := time.Now()
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventNotificationRequested) {
		c.met.IncSkipped(anomalyNotificationConsumer)
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		c.met.IncFailure(anomalyNotificationConsumer)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, anomalyNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.met.IncSkipped(anomalyNotificationConsumer)
		return processResult{ack: true}
	}

	var payload payloads.NotificationRequestedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		c.met.IncFailure(anomalyNotificationConsumer)
		return processResult{ack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"anomaly_id": payload.AnomalyID.String(),
		"severity":   payload.Severity,
	})

	if err := c.handle(ctx, payload, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, anomalyNotificationConsumer, eventID)
		c.met.IncFailure(anomalyNotificationConsumer)
		return processResult{nack: true}
	}

	c.met.IncSuccess(anomalyNotificationConsumer)
	c.met.ObserveDuration(anomalyNotificationConsumer, time.Since(started))
	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, payload payloads.NotificationRequestedEvent, logCtx context.Context) error {
	if payload.AnomalyID == uuid.Nil {
		return fmt.Errorf("anomaly id missing")
	}
	if payload.Title == "" {
		return fmt.Errorf("title missing")
	}

	// One alert per anomaly. Retried or re-raised events fold into the
	// original notification instead of spamming the manager view.
	exists, err := c.repo.ExistsForAnomaly(ctx, payload.AnomalyID)
	if err != nil {
		return err
	}
	if exists {
		c.logg.Info(logCtx, "anomaly already has a notification")
		return nil
	}

	anomalyID := payload.AnomalyID
	notification := &models.Notification{
		AnomalyID: &anomalyID,
		Severity:  payload.Severity,
		Title:     payload.Title,
		Message:   payload.Message,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "manager notified of anomaly")
	return nil
}
