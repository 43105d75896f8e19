package service

import (
	"context"

	"delivery-dispatch/internal/domain/driver"
	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/jwt"
	"delivery-dispatch/internal/general/rooms"
)

// updateDeviceStatus appends a health sample and raises driverDeviceAlert to admin when
// battery or signal is below threshold. The alert does not depend on the sample being stored.
func (r *Router) updateDeviceStatus(ctx context.Context, s *jwt.Session, p contracts.DeviceStatusUpdate) error {
	now := r.now()
	ts := p.Timestamp
	if ts.IsZero() {
		ts = now
	}
	sample, err := driver.NewMetricSample(s.SubjectID, p.BatteryLevel, p.SignalStrength, ts)
	if err != nil {
		return badPayload(err)
	}
	sample.ID = r.newID()

	stored := sample.NotAhead(now)
	if stored != nil {
		stored = badPayload(stored)
	} else {
		unlock := r.locks.Lock(driverKey(s.SubjectID))
		stored = r.store.UnitOfWork().WithinTx(ctx, func(ctx context.Context) error {
			prev, err := r.store.Metrics().Latest(ctx, s.SubjectID)
			if err != nil {
				return err
			}
			if err := sample.After(prev); err != nil {
				return err
			}
			return r.store.Metrics().Append(ctx, sample)
		})
		unlock()
	}

	if sample.Alarming(r.thresholds) {
		r.alertDevice(ctx, sample)
	}
	return stored
}

func (r *Router) alertDevice(ctx context.Context, sample *driver.MetricSample) {
	r.metrics.DeviceAlert()
	r.publish(rooms.Admin(), contracts.EventDriverDeviceAlert, contracts.DriverDeviceAlert{
		DriverID:       sample.DriverID,
		BatteryLevel:   sample.BatteryLevel,
		SignalStrength: sample.SignalStrength,
		Timestamp:      sample.Timestamp,
	})
	r.logger.Info(ctx, "driver_device_alert", "Driver device below threshold",
		map[string]any{"driver_id": sample.DriverID, "battery": sample.BatteryLevel, "signal": sample.SignalStrength})
}
