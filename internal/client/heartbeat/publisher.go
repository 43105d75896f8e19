package heartbeat

import (
	"context"
	"time"

	"delivery-dispatch/internal/client/sensors"
	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/logger"
)

// Emitter sends one event over the current session.
type Emitter interface {
	Send(ctx context.Context, t contracts.EventType, payload any) error
}

// Publisher forwards every location fix as updateLocation and samples the device
// immediately and then every interval as updateDeviceStatus.
type Publisher struct {
	location sensors.LocationSource
	device   sensors.DeviceSource
	interval time.Duration
	logger   *logger.Logger
}

// NewPublisher builds a publisher. Either source may be nil to disable that stream.
func NewPublisher(loc sensors.LocationSource, dev sensors.DeviceSource, interval time.Duration, log *logger.Logger) *Publisher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Publisher{location: loc, device: dev, interval: interval, logger: log}
}

// Run blocks until ctx is done. Nothing is emitted after that. Send failures are logged
// and the sample is dropped.
func (p *Publisher) Run(ctx context.Context, e Emitter) error {
	var fixes <-chan sensors.Location
	if p.location != nil {
		ch, err := p.location.Watch(ctx)
		if err != nil {
			p.logger.Warn(ctx, "heartbeat_watch_failed", "Location watch unavailable, sending device status only",
				map[string]any{"error": err.Error()})
		} else {
			fixes = ch
		}
	}

	var tick <-chan time.Time
	if p.device != nil {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
		p.sampleDevice(ctx, e)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case fix, ok := <-fixes:
			if !ok {
				fixes = nil
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			p.emit(ctx, e, contracts.EventUpdateLocation, contracts.LocationUpdate{
				Latitude:  fix.Latitude,
				Longitude: fix.Longitude,
				Accuracy:  fix.Accuracy,
				Timestamp: fix.Timestamp,
			})

		case <-tick:
			p.sampleDevice(ctx, e)
		}
	}
}

func (p *Publisher) sampleDevice(ctx context.Context, e Emitter) {
	st, err := p.device.Sample(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn(ctx, "heartbeat_sample_failed", "Device sample failed", map[string]any{"error": err.Error()})
		}
		return
	}
	p.emit(ctx, e, contracts.EventUpdateDeviceStatus, contracts.DeviceStatusUpdate{
		BatteryLevel:   st.BatteryLevel,
		SignalStrength: st.SignalStrength,
		Timestamp:      st.Timestamp,
	})
}

func (p *Publisher) emit(ctx context.Context, e Emitter, t contracts.EventType, payload any) {
	if ctx.Err() != nil {
		return
	}
	if err := e.Send(ctx, t, payload); err != nil && ctx.Err() == nil {
		p.logger.Debug(ctx, "heartbeat_send_failed", "Heartbeat not sent", map[string]any{"type": t, "error": err.Error()})
	}
}
