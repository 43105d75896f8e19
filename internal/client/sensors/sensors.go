package sensors

import (
	"context"
	"time"
)

// Location is one position fix from the handset.
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Timestamp time.Time
}

// DeviceStatus is one battery and signal reading.
type DeviceStatus struct {
	BatteryLevel   int
	SignalStrength int
	Timestamp      time.Time
}

// LocationSource streams position fixes until ctx is done, then closes the channel.
type LocationSource interface {
	Watch(ctx context.Context) (<-chan Location, error)
}

// DeviceSource reads the current battery and signal levels.
type DeviceSource interface {
	Sample(ctx context.Context) (DeviceStatus, error)
}
