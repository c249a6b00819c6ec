package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/fleetwatch-core/internal/device"
	"github.com/nerrad567/fleetwatch-core/internal/infrastructure/mqtt"
)

// Logger is the logging surface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Subscriber is the MQTT surface the ingestor needs. *mqtt.Client
// satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Updater applies partial updates. *device.Engine satisfies it.
type Updater interface {
	UpdateDeviceStatus(ctx context.Context, id string, u device.Update) (device.UpdateResult, error)
}

// IngestorStats counts messages by outcome.
type IngestorStats struct {
	Received  uint64 `json:"received"`
	Applied   uint64 `json:"applied"`
	Unchanged uint64 `json:"unchanged"`
	Unknown   uint64 `json:"unknown"`
	Rejected  uint64 `json:"rejected"`
}

// IngestorOptions configures an Ingestor.
type IngestorOptions struct {
	Subscriber Subscriber
	Engine     Updater
	QoS        byte
	Logger     Logger
}

// Ingestor turns telemetry messages into engine updates.
type Ingestor struct {
	sub    Subscriber
	engine Updater
	qos    byte
	topic  string
	logger Logger

	mu      sync.RWMutex
	ctx     context.Context
	started bool

	received  atomic.Uint64
	applied   atomic.Uint64
	unchanged atomic.Uint64
	unknown   atomic.Uint64
	rejected  atomic.Uint64
}

// NewIngestor creates an ingestor. Call Start to subscribe.
func NewIngestor(opts IngestorOptions) (*Ingestor, error) {
	if opts.Subscriber == nil {
		return nil, fmt.Errorf("telemetry: subscriber is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("telemetry: engine is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Ingestor{
		sub:    opts.Subscriber,
		engine: opts.Engine,
		qos:    opts.QoS,
		topic:  mqtt.Topics{}.AllTelemetry(),
		logger: logger,
	}, nil
}

// Start subscribes to every unit's telemetry topic. ctx bounds the updates
// applied from message callbacks.
func (i *Ingestor) Start(ctx context.Context) error {
	i.mu.Lock()
	i.ctx = ctx
	i.started = true
	i.mu.Unlock()

	if err := i.sub.Subscribe(i.topic, i.qos, i.HandleMessage); err != nil {
		i.mu.Lock()
		i.started = false
		i.mu.Unlock()
		return fmt.Errorf("subscribing to telemetry: %w", err)
	}

	i.logger.Info("telemetry ingestion started", "topic", i.topic)
	return nil
}

// Stop unsubscribes. Safe to call more than once.
func (i *Ingestor) Stop() {
	i.mu.Lock()
	wasStarted := i.started
	i.started = false
	i.mu.Unlock()

	if !wasStarted {
		return
	}
	if err := i.sub.Unsubscribe(i.topic); err != nil {
		i.logger.Warn("telemetry unsubscribe failed", "error", err)
	}
	i.logger.Info("telemetry ingestion stopped", "applied", i.applied.Load())
}

// HandleMessage decodes one telemetry message and applies it.
// It is the mqtt.MessageHandler registered by Start.
func (i *Ingestor) HandleMessage(topic string, payload []byte) error {
	i.received.Add(1)

	i.mu.RLock()
	ctx, started := i.ctx, i.started
	i.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	deviceID, ok := mqtt.DeviceIDFromTelemetryTopic(topic)
	if !ok {
		i.rejected.Add(1)
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	update, err := DecodeUpdate(payload)
	if err != nil {
		i.rejected.Add(1)
		i.logger.Warn("rejected telemetry", "device_id", deviceID, "error", err)
		return err
	}

	res, err := i.engine.UpdateDeviceStatus(ctx, deviceID, update)
	if err != nil {
		i.rejected.Add(1)
		return fmt.Errorf("applying telemetry for %s: %w", deviceID, err)
	}

	switch res.Outcome {
	case device.OutcomeUpdated:
		i.applied.Add(1)
		i.logger.Debug("telemetry applied", "device_id", deviceID, "changes", len(res.Event.Changes))
	case device.OutcomeUnchanged:
		i.unchanged.Add(1)
	case device.OutcomeNotFound:
		i.unknown.Add(1)
		i.logger.Warn("telemetry for unknown device", "device_id", deviceID)
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return nil
}

// Stats returns message counters since creation.
func (i *Ingestor) Stats() IngestorStats {
	return IngestorStats{
		Received:  i.received.Load(),
		Applied:   i.applied.Load(),
		Unchanged: i.unchanged.Load(),
		Unknown:   i.unknown.Load(),
		Rejected:  i.rejected.Load(),
	}
}

// DecodeUpdate parses a telemetry payload into a partial update.
// Status and health values are lower-cased.
func DecodeUpdate(payload []byte) (device.Update, error) {
	var u device.Update

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return u, fmt.Errorf("%w: expected a JSON object", ErrInvalidPayload)
	}
	if err := json.Unmarshal(trimmed, &u); err != nil {
		return u, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if u.Status != nil {
		s := device.Status(strings.ToLower(strings.TrimSpace(string(*u.Status))))
		if s == "" {
			return u, fmt.Errorf("%w: empty status", ErrInvalidPayload)
		}
		u.Status = &s
	}
	if u.HealthStatus != nil {
		h := device.HealthStatus(strings.ToLower(strings.TrimSpace(string(*u.HealthStatus))))
		u.HealthStatus = &h
	}
	return u, nil
}
