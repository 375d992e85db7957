// Package publisher fans normalized events and sync progress out to Redis Streams and
// MQTT. Every transport is optional; publishing failures are logged, never returned to
// the ingestion path.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	commonredis "hik-access-bridge/common/redis"
	"hik-access-bridge/internal/models"

	"go.uber.org/zap"
)

// MQTTPublisher subset of the MQTT client used here.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// EventOptions destinations; zero values disable a transport.
type EventOptions struct {
	Stream      string
	MaxLen      int64
	TopicPrefix string
	QoS         byte
}

// EventPublisher publishes accepted AccessEvents.
type EventPublisher struct {
	stream commonredis.StreamAdder
	mqtt   MQTTPublisher
	opts   EventOptions
	logger *zap.Logger
}

// NewEventPublisher either transport may be nil.
func NewEventPublisher(stream commonredis.StreamAdder, mqtt MQTTPublisher, opts EventOptions, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		stream: stream,
		mqtt:   mqtt,
		opts:   opts,
		logger: logger.Named("publisher"),
	}
}

// Topic MQTT topic for a door.
func (p *EventPublisher) Topic(doorID int) string {
	return fmt.Sprintf("%s/door/%d/event", p.opts.TopicPrefix, doorID)
}

// Publish sends event to every configured transport.
func (p *EventPublisher) Publish(ctx context.Context, event models.AccessEvent) {
	if p == nil {
		return
	}
	if p.stream != nil && p.opts.Stream != "" {
		id, err := commonredis.PublishToStream(ctx, p.stream, p.opts.Stream, p.opts.MaxLen, map[string]interface{}{
			"employee_id":    event.EmployeeID,
			"door_id":        event.DoorID,
			"event_code":     event.EventCode,
			"access_granted": event.AccessGranted,
			"captured_at":    event.CapturedAt.Unix(),
			"data":           event,
		})
		if err != nil {
			p.logger.Warn("Failed to publish event to stream", zap.String("stream", p.opts.Stream), zap.Error(err))
		} else {
			p.logger.Debug("Event published to stream", zap.String("stream", p.opts.Stream), zap.String("message_id", id))
		}
	}

	if p.mqtt != nil && p.opts.TopicPrefix != "" {
		payload, err := json.Marshal(event)
		if err != nil {
			p.logger.Warn("Failed to encode event for MQTT", zap.Error(err))
			return
		}
		topic := p.Topic(event.DoorID)
		if err := p.mqtt.Publish(topic, p.opts.QoS, false, payload); err != nil {
			p.logger.Warn("Failed to publish event to MQTT", zap.String("topic", topic), zap.Error(err))
		}
	}
}
