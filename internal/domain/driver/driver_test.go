package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-dispatch/internal/domain/geo"
)

func TestNewDriverDefaultsOffline(t *testing.T) {
	d, err := NewDriver("D1", "Ada")
	require.NoError(t, err)
	assert.Equal(t, StatusOffline, d.Status)
	assert.Empty(t, d.CurrentOrderID)

	_, err = NewDriver("", "Ada")
	assert.ErrorIs(t, err, ErrDriverIDRequired)
	_, err = NewDriver("D1", " ")
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestDriverLifecycle(t *testing.T) {
	d, err := NewDriver("D1", "Ada")
	require.NoError(t, err)

	d.GoOnline("")
	assert.Equal(t, StatusAvailable, d.Status)

	d.StartDelivery("ord-1")
	assert.Equal(t, StatusDelivering, d.Status)
	assert.Equal(t, "ord-1", d.CurrentOrderID)

	d.StartDelivery("ord-2")
	d.FinishDelivery("ord-1")
	assert.Equal(t, StatusDelivering, d.Status)
	assert.Equal(t, "ord-1", d.CurrentOrderID)

	d.FinishDelivery("")
	assert.Equal(t, StatusAvailable, d.Status)
	assert.Empty(t, d.CurrentOrderID)

	d.GoOffline()
	assert.Equal(t, StatusOffline, d.Status)
}

func TestGoOnlineResumesActiveOrder(t *testing.T) {
	d, err := NewDriver("D1", "Ada")
	require.NoError(t, err)
	d.GoOnline("ord-9")
	assert.Equal(t, StatusDelivering, d.Status)
	assert.Equal(t, "ord-9", d.CurrentOrderID)
}

func TestMoveToValidates(t *testing.T) {
	d, err := NewDriver("D1", "Ada")
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, d.MoveTo(geo.Point{Lat: 10, Lng: 20}, at))
	require.NotNil(t, d.LastKnownLocation)
	assert.Equal(t, 10.0, d.LastKnownLocation.Lat)
	assert.Equal(t, at, d.LastUpdateAt)

	assert.ErrorIs(t, d.MoveTo(geo.Point{Lat: 0, Lng: 200}, at), geo.ErrInvalidLongitude)
	assert.Equal(t, 10.0, d.LastKnownLocation.Lat)
}

func TestSetCredentials(t *testing.T) {
	d, err := NewDriver("D1", "Ada")
	require.NoError(t, err)
	require.NoError(t, d.SetCredentials(" Ada@Example.com ", "hash"))
	assert.Equal(t, "ada@example.com", d.Email)
	assert.ErrorIs(t, d.SetCredentials("not-an-email", "hash"), ErrInvalidEmail)
}

func TestMetricSampleThresholds(t *testing.T) {
	low, err := NewMetricSample("D1", 15, 90, time.Now())
	require.NoError(t, err)
	assert.True(t, low.Alarming(DefaultThresholds))

	weak, err := NewMetricSample("D1", 80, 24, time.Now())
	require.NoError(t, err)
	assert.True(t, weak.Alarming(DefaultThresholds))

	ok, err := NewMetricSample("D1", 25, 90, time.Now())
	require.NoError(t, err)
	assert.False(t, ok.Alarming(DefaultThresholds))

	edge, err := NewMetricSample("D1", 20, 25, time.Now())
	require.NoError(t, err)
	assert.False(t, edge.Alarming(DefaultThresholds))
}

func TestMetricSampleValidation(t *testing.T) {
	_, err := NewMetricSample("D1", 101, 50, time.Now())
	assert.ErrorIs(t, err, ErrBatteryOutOfRange)
	_, err = NewMetricSample("D1", 50, -1, time.Now())
	assert.ErrorIs(t, err, ErrSignalOutOfRange)
	_, err = NewMetricSample("", 50, 50, time.Now())
	assert.ErrorIs(t, err, ErrDriverIDRequired)

	s, err := NewMetricSample("D1", 50, 50, time.Time{})
	require.NoError(t, err)
	assert.False(t, s.Timestamp.IsZero())
}

func TestMetricSampleMonotonic(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	first, err := NewMetricSample("D1", 50, 50, t0)
	require.NoError(t, err)
	require.NoError(t, first.After(nil))

	same, err := NewMetricSample("D1", 50, 50, t0)
	require.NoError(t, err)
	assert.ErrorIs(t, same.After(first), ErrStaleSample)

	later, err := NewMetricSample("D1", 50, 50, t0.Add(time.Second))
	require.NoError(t, err)
	assert.NoError(t, later.After(first))
}

func TestMetricSampleClockSkew(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ahead, err := NewMetricSample("D1", 50, 50, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.ErrorIs(t, ahead.NotAhead(now), ErrFutureSample)

	slightly, err := NewMetricSample("D1", 50, 50, now.Add(MaxClockSkew/2))
	require.NoError(t, err)
	assert.NoError(t, slightly.NotAhead(now))
}

func TestOfflineDriverKeepsOrderWithoutGoingOnline(t *testing.T) {
	d, err := NewDriver("D1", "Ada")
	require.NoError(t, err)

	d.StartDelivery("ord-1")
	assert.Equal(t, StatusOffline, d.Status)
	assert.Equal(t, "ord-1", d.CurrentOrderID)

	d.GoOnline(d.CurrentOrderID)
	assert.Equal(t, StatusDelivering, d.Status)

	d.GoOffline()
	d.FinishDelivery("")
	assert.Equal(t, StatusOffline, d.Status)
	assert.Empty(t, d.CurrentOrderID)
}
