package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/fleetwatch-core/internal/device"
	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/mqtt"
)

// JSONPublisher publishes JSON-encoded payloads. *mqtt.Client satisfies it.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// MQTTPublisher mirrors engine events onto the broker.
type MQTTPublisher struct {
	pub    JSONPublisher
	topics mqtt.Topics
	logger Logger
}

// NewMQTTPublisher creates a publisher sink. logger may be nil.
func NewMQTTPublisher(pub JSONPublisher, logger Logger) *MQTTPublisher {
	return &MQTTPublisher{pub: pub, logger: orNoop(logger)}
}

// HandleStatusChange publishes the event and retains the new snapshot.
// It satisfies device.Listener.
func (p *MQTTPublisher) HandleStatusChange(_ context.Context, event device.StatusChangeEvent) error {
	var errs []error

	if err := p.pub.PublishJSON(p.topics.DeviceStatusChange(event.DeviceID), event, false); err != nil {
		errs = append(errs, fmt.Errorf("publishing status change: %w", err))
	}
	if err := p.pub.PublishJSON(p.topics.DeviceState(event.DeviceID), event.NewStatus, true); err != nil {
		errs = append(errs, fmt.Errorf("publishing device state: %w", err))
	}

	if len(errs) == 0 {
		p.logger.Debug("status change published", "device_id", event.DeviceID)
	}
	return errors.Join(errs...)
}

// PublishSnapshot retains the current state of every unit, so subscribers
// that connect later see the whole fleet. Called once at startup.
func (p *MQTTPublisher) PublishSnapshot(states []device.DeviceState) error {
	var errs []error
	for _, s := range states {
		if err := p.pub.PublishJSON(p.topics.DeviceState(s.ID), s, true); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.ID, err))
		}
	}
	if len(errs) > 0 {
		p.logger.Warn("fleet snapshot partially published", "failed", len(errs), "total", len(states))
	}
	return errors.Join(errs...)
}
