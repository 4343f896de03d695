package anomalies

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/kitchenlinehq/kitchenline-backend/pkg/enums"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/logger"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/metrics"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/outbox"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/outbox/idempotency"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/outbox/payloads"
	"github.com/kitchenlinehq/kitchenline-backend/pkg/outbox/registry"
)

const anomalyConsumerName = "anomaly-detection"

// Consumer feeds routing and order mutation events through the rules engine.
// Detection runs outside the mutating transaction on purpose: a slow or
// broken rule must never abort the kitchen's primary write.
type Consumer struct {
	engine       *Engine
	service      Service
	subscription *pubsub.Subscriber
	decoders     *registry.DecoderRegistry
	idempotency  *idempotency.Manager
	met          *metrics.ConsumerMetrics
	logg         *logger.Logger
}

// NewConsumer builds the anomaly detection consumer.
func NewConsumer(engine *Engine, service Service, subscription *pubsub.Subscriber, manager *idempotency.Manager, met *metrics.ConsumerMetrics, logg *logger.Logger) (*Consumer, error) {
	if engine == nil {
		return nil, fmt.Errorf("rules engine required")
	}
	if service == nil {
		return nil, fmt.Errorf("anomaly service required")
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
		engine:       engine,
		service:      service,
		subscription: subscription,
		decoders:     newAnomalyDecoders(),
		idempotency:  manager,
		met:          met,
		logg:         logg,
	}, nil
}

func newAnomalyDecoders() *registry.DecoderRegistry {
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventOrderCreated, 1, func(payload json.RawMessage) (interface{}, error) {
		var event payloads.OrderCreatedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		return &event, nil
	})
	decoders.Register(enums.EventRoutingBumped, 1, func(payload json.RawMessage) (interface{}, error) {
		var event payloads.RoutingBumpedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		return &event, nil
	})
	return decoders
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
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != enums.EventOrderCreated && eventType != enums.EventRoutingBumped {
		c.met.IncSkipped(anomalyConsumerName)
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		c.met.IncFailure(anomalyConsumerName)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		c.met.IncFailure(anomalyConsumerName)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, anomalyConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		c.met.IncFailure(anomalyConsumerName)
		return processResult{nack: true}
	}
	if already {
		c.met.IncSkipped(anomalyConsumerName)
		return processResult{ack: true}
	}

	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		c.met.IncFailure(anomalyConsumerName)
		return processResult{ack: true}
	}

	if err := c.evaluate(logCtx, decoded); err != nil {
		c.logg.Error(logCtx, "anomaly evaluation failed", err)
		_ = c.idempotency.Delete(ctx, anomalyConsumerName, eventID)
		c.met.IncFailure(anomalyConsumerName)
		return processResult{nack: true}
	}

	c.met.IncSuccess(anomalyConsumerName)
	c.met.ObserveDuration(anomalyConsumerName, time.Since(started))
	return processResult{ack: true}
}

func (c *Consumer) evaluate(ctx context.Context, decoded interface{}) error {
	var (
		findings []Finding
		err      error
	)
	switch event := decoded.(type) {
	case *payloads.OrderCreatedEvent:
		findings, err = c.engine.EvaluateOrderCreated(ctx, *event)
	case *payloads.RoutingBumpedEvent:
		findings, err = c.engine.EvaluateRoutingBumped(ctx, *event)
	default:
		return nil
	}
	if err != nil {
		return err
	}

	for _, finding := range findings {
		anomaly, err := c.service.Record(ctx, finding)
		if err != nil {
			return err
		}
		if anomaly != nil {
			c.logg.Info(c.logg.WithFields(ctx, map[string]any{
				"anomaly_id": anomaly.ID.String(),
				"type_code":  finding.TypeCode,
			}), "anomaly recorded")
		}
	}
	return nil
}
