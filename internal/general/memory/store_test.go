package memory

import (
	"context"
	"testing"
	"time"

	"delivery-dispatch/internal/domain/delivery"
	"delivery-dispatch/internal/domain/driver"
	"delivery-dispatch/internal/domain/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverStoreCopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	d, err := driver.NewDriver("D1", "Ada")
	require.NoError(t, err)
	require.NoError(t, d.SetCredentials("ada@example.com", "hash"))
	require.NoError(t, s.Drivers().Create(ctx, d))

	d.Name = "mutated"
	got, err := s.Drivers().GetByID(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	byEmail, err := s.Drivers().GetByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "D1", byEmail.ID)

	dup, err := driver.NewDriver("D2", "Bob")
	require.NoError(t, err)
	require.NoError(t, dup.SetCredentials("ada@example.com", "hash"))
	assert.ErrorIs(t, s.Drivers().Create(ctx, dup), driver.ErrEmailTaken)

	_, err = s.Drivers().GetByID(ctx, "nope")
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func TestListActiveSkipsOffline(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, id := range []string{"D2", "D1", "D3"} {
		d, err := driver.NewDriver(id, "n")
		require.NoError(t, err)
		if id != "D3" {
			d.GoOnline("")
		}
		require.NoError(t, s.Drivers().Create(ctx, d))
	}

	active, err := s.Drivers().ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "D1", active[0].ID)
	assert.Equal(t, "D2", active[1].ID)
}

func TestDeliveryStoreActiveOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := geo.Point{Lat: 1, Lng: 1}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, order := range []string{"ord-1", "ord-2", "ord-3"} {
		d, err := delivery.New("dlv-"+order, order, "D1", p, p)
		require.NoError(t, err)
		d.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Deliveries().Create(ctx, d))
	}

	done, err := s.Deliveries().GetByOrderID(ctx, "ord-2")
	require.NoError(t, err)
	for _, st := range []delivery.Status{delivery.StatusPickedUp, delivery.StatusDelivering, delivery.StatusCompleted} {
		_, err := done.Transition(st, base)
		require.NoError(t, err)
	}
	require.NoError(t, s.Deliveries().Update(ctx, done))

	active, err := s.Deliveries().ListActiveByDriver(ctx, "D1")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "ord-1", active[0].OrderID)
	assert.Equal(t, "ord-3", active[1].OrderID)

	other, err := delivery.New("dlv-ord-4", "ord-4", "D2", p, p)
	require.NoError(t, err)
	other.CreatedAt = base.Add(-time.Minute)
	require.NoError(t, s.Deliveries().Create(ctx, other))

	all, err := s.Deliveries().ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ord-4", all[0].OrderID)

	again, err := delivery.New("dlv-x", "ord-1", "D2", p, p)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Deliveries().Create(ctx, again), delivery.ErrOrderAssigned)
}

func TestMetricStoreRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	latest, err := s.Metrics().Latest(ctx, "D1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		m, err := driver.NewMetricSample("D1", 50+i, 60, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.NoError(t, s.Metrics().Append(ctx, m))
	}

	recent, err := s.Metrics().Recent(ctx, "D1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 52, recent[0].BatteryLevel)
	assert.Equal(t, 51, recent[1].BatteryLevel)

	latest, err = s.Metrics().Latest(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, 52, latest.BatteryLevel)
}
