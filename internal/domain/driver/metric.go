package driver

import (
	"errors"
	"strings"
	"time"
)

// MetricSample is one device-health reading reported by a driver's handset.
type MetricSample struct {
	ID             string
	DriverID       string
	BatteryLevel   int
	SignalStrength int
	Timestamp      time.Time
}

// Thresholds below which a sample is considered alarming.
type Thresholds struct {
	BatteryLevel   int
	SignalStrength int
}

// DefaultThresholds are the alert limits used when nothing else is configured.
var DefaultThresholds = Thresholds{BatteryLevel: 20, SignalStrength: 25}

var (
	ErrBatteryOutOfRange = errors.New("battery level must be between 0 and 100")
	ErrSignalOutOfRange  = errors.New("signal strength must be between 0 and 100")
	ErrStaleSample       = errors.New("sample timestamp is not after the previous sample")
	ErrFutureSample      = errors.New("sample timestamp is ahead of the server clock")
)

// MaxClockSkew is how far a device clock may run ahead of the server.
const MaxClockSkew = time.Minute

// NewMetricSample validates ranges and normalizes the timestamp to UTC.
func NewMetricSample(driverID string, battery, signal int, ts time.Time) (*MetricSample, error) {
	if driverID = strings.TrimSpace(driverID); driverID == "" {
		return nil, ErrDriverIDRequired
	}
	if battery < 0 || battery > 100 {
		return nil, ErrBatteryOutOfRange
	}
	if signal < 0 || signal > 100 {
		return nil, ErrSignalOutOfRange
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	return &MetricSample{
		DriverID:       driverID,
		BatteryLevel:   battery,
		SignalStrength: signal,
		Timestamp:      ts.UTC(),
	}, nil
}

// After enforces per-driver monotonic timestamps against the previous sample (nil if none).
func (sample *MetricSample) After(prev *MetricSample) error {
	if prev != nil && !sample.Timestamp.After(prev.Timestamp) {
		return ErrStaleSample
	}
	return nil
}

// NotAhead rejects samples dated more than MaxClockSkew past now, so one bad device clock
// cannot block every later sample.
func (sample *MetricSample) NotAhead(now time.Time) error {
	if sample.Timestamp.After(now.Add(MaxClockSkew)) {
		return ErrFutureSample
	}
	return nil
}

// Alarming reports whether the sample breaches either threshold.
func (sample *MetricSample) Alarming(t Thresholds) bool {
	return sample.BatteryLevel < t.BatteryLevel || sample.SignalStrength < t.SignalStrength
}
