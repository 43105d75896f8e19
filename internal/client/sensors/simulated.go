package sensors

import (
	"context"
	"math"
	"sync"
	"time"

	"delivery-dispatch/internal/domain/geo"
)

// Simulated drives a straight line from a start point to a destination at a fixed speed and
// drains the battery by one point per device sample. It serves both sensor interfaces.
type Simulated struct {
	interval time.Duration
	speedKmh float64
	now      func() time.Time

	mu       sync.Mutex
	pos      geo.Point
	dest     geo.Point
	battery  int
	signal   int
	sampleNo int
}

type SimOption func(*Simulated)

// WithFixInterval sets how often Watch emits a position.
func WithFixInterval(d time.Duration) SimOption {
	return func(s *Simulated) { s.interval = d }
}

func WithSpeed(kmh float64) SimOption {
	return func(s *Simulated) { s.speedKmh = kmh }
}

// WithDevice sets the starting battery and signal levels.
func WithDevice(battery, signal int) SimOption {
	return func(s *Simulated) { s.battery, s.signal = battery, signal }
}

func WithSimClock(now func() time.Time) SimOption {
	return func(s *Simulated) { s.now = now }
}

func NewSimulated(start, dest geo.Point, opts ...SimOption) *Simulated {
	s := &Simulated{
		interval: 3 * time.Second,
		speedKmh: 30,
		now:      time.Now,
		pos:      start,
		dest:     dest,
		battery:  100,
		signal:   80,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Watch emits the current position immediately and then one step closer to the
// destination every interval.
func (s *Simulated) Watch(ctx context.Context) (<-chan Location, error) {
	out := make(chan Location, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		fix := s.Position()
		for {
			select {
			case <-ctx.Done():
				return
			case out <- fix:
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fix = s.step()
			}
		}
	}()
	return out, nil
}

// Sample reports the device levels. Signal dips every fifth sample.
func (s *Simulated) Sample(ctx context.Context) (DeviceStatus, error) {
	if err := ctx.Err(); err != nil {
		return DeviceStatus{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st := DeviceStatus{BatteryLevel: s.battery, SignalStrength: s.signal, Timestamp: s.now().UTC()}
	s.sampleNo++
	if s.sampleNo%5 == 0 {
		st.SignalStrength = s.signal / 4
	}
	if s.battery > 0 {
		s.battery--
	}
	return st, nil
}

// Position returns the current simulated fix without moving.
func (s *Simulated) Position() Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fixLocked()
}

// Remaining is the straight-line distance left to the destination in kilometers.
func (s *Simulated) Remaining() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return geo.HaversineKM(s.pos, s.dest)
}

func (s *Simulated) step() Location {
	s.mu.Lock()
	defer s.mu.Unlock()

	left := geo.HaversineKM(s.pos, s.dest)
	stride := s.speedKmh * s.interval.Hours()
	if left <= stride || left == 0 {
		s.pos = s.dest
		return s.fixLocked()
	}
	f := stride / left
	s.pos = geo.Point{
		Lat: s.pos.Lat + (s.dest.Lat-s.pos.Lat)*f,
		Lng: s.pos.Lng + (s.dest.Lng-s.pos.Lng)*f,
	}
	return s.fixLocked()
}

func (s *Simulated) fixLocked() Location {
	return Location{
		Latitude:  math.Round(s.pos.Lat*1e6) / 1e6,
		Longitude: math.Round(s.pos.Lng*1e6) / 1e6,
		Accuracy:  5,
		Timestamp: s.now().UTC(),
	}
}
