package sensors

import (
	"context"
	"testing"
	"time"

	"delivery-dispatch/internal/domain/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alexanderplatz = geo.Point{Lat: 52.5219, Lng: 13.4132}
	ostkreuz       = geo.Point{Lat: 52.5030, Lng: 13.4690}
)

func TestWatchMovesTowardDestination(t *testing.T) {
	s := NewSimulated(alexanderplatz, ostkreuz, WithFixInterval(5*time.Millisecond), WithSpeed(3600))
	start := s.Remaining()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fixes, err := s.Watch(ctx)
	require.NoError(t, err)

	first := <-fixes
	assert.InDelta(t, alexanderplatz.Lat, first.Latitude, 1e-6)

	var last Location
	for i := 0; i < 3; i++ {
		last = <-fixes
	}
	assert.Less(t, s.Remaining(), start)
	assert.NotEqual(t, first.Latitude, last.Latitude)
}

func TestWatchStopsAtDestinationAndOnCancel(t *testing.T) {
	s := NewSimulated(alexanderplatz, ostkreuz, WithFixInterval(time.Millisecond), WithSpeed(1e9))
	ctx, cancel := context.WithCancel(context.Background())
	fixes, err := s.Watch(ctx)
	require.NoError(t, err)

	<-fixes
	<-fixes
	assert.InDelta(t, 0, s.Remaining(), 1e-9)

	cancel()
	for range fixes {
	}
}

func TestSampleDrainsBatteryAndDipsSignal(t *testing.T) {
	s := NewSimulated(alexanderplatz, ostkreuz, WithDevice(22, 80))
	ctx := context.Background()

	var got []DeviceStatus
	for i := 0; i < 5; i++ {
		st, err := s.Sample(ctx)
		require.NoError(t, err)
		got = append(got, st)
	}
	assert.Equal(t, 22, got[0].BatteryLevel)
	assert.Equal(t, 18, got[4].BatteryLevel)
	assert.Equal(t, 80, got[3].SignalStrength)
	assert.Equal(t, 20, got[4].SignalStrength)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := s.Sample(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
