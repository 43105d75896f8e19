package delivery

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-dispatch/internal/domain/geo"
)

func newTestDelivery(t *testing.T) *Delivery {
	t.Helper()
	d, err := New("dlv-1", "ord-1", "D1", geo.Point{Lat: 52.52, Lng: 13.40}, geo.Point{Lat: 52.50, Lng: 13.45})
	require.NoError(t, err)
	return d
}

func TestNewStartsAssigned(t *testing.T) {
	d := newTestDelivery(t)
	assert.Equal(t, StatusAssigned, d.Status)
	assert.Nil(t, d.CompletedAt)
	assert.True(t, d.Active())
}

func TestNewRejectsMissingFields(t *testing.T) {
	p := geo.Point{Lat: 1, Lng: 1}
	_, err := New("", "ord", "D1", p, p)
	assert.ErrorIs(t, err, ErrIDRequired)
	_, err = New("id", " ", "D1", p, p)
	assert.ErrorIs(t, err, ErrOrderIDRequired)
	_, err = New("id", "ord", "", p, p)
	assert.ErrorIs(t, err, ErrDriverIDRequired)
	_, err = New("id", "ord", "D1", geo.Point{Lat: 91}, p)
	assert.ErrorIs(t, err, geo.ErrInvalidLatitude)
}

func TestTransitionForwardChain(t *testing.T) {
	d := newTestDelivery(t)
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	for _, next := range []Status{StatusPickedUp, StatusDelivering, StatusCompleted} {
		changed, err := d.Transition(next, at)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, next, d.Status)
	}
	require.NotNil(t, d.CompletedAt)
	assert.Equal(t, at, *d.CompletedAt)
	assert.False(t, d.Active())
}

func TestTransitionRejectsSkipAndBackward(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		skip bool
	}{
		{"skip to delivering", StatusAssigned, StatusDelivering, true},
		{"skip to completed", StatusAssigned, StatusCompleted, true},
		{"backward to assigned", StatusPickedUp, StatusAssigned, false},
		{"repeat picked_up", StatusPickedUp, StatusPickedUp, false},
		{"completed to delivering", StatusCompleted, StatusDelivering, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newTestDelivery(t)
			d.Status = tc.from
			before := *d

			changed, err := d.Transition(tc.to, time.Now())
			assert.False(t, changed)
			assert.True(t, errors.Is(err, ErrInvalidTransition))
			assert.Equal(t, tc.skip, strings.Contains(err.Error(), "skips a step"))
			assert.Equal(t, before, *d)
		})
	}
}

func TestTransitionUnknownStatus(t *testing.T) {
	d := newTestDelivery(t)
	_, err := d.Transition(Status("lost"), time.Now())
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, StatusAssigned, d.Status)
}

func TestCompletedIsIdempotent(t *testing.T) {
	d := newTestDelivery(t)
	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for _, s := range []Status{StatusPickedUp, StatusDelivering, StatusCompleted} {
		_, err := d.Transition(s, first)
		require.NoError(t, err)
	}
	snapshot := *d
	completedAt := *d.CompletedAt

	changed, err := d.Transition(StatusCompleted, first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, completedAt, *d.CompletedAt)
	assert.Equal(t, snapshot.Status, d.Status)
}

func TestStatusOrdering(t *testing.T) {
	chain := []Status{StatusAssigned, StatusPickedUp, StatusDelivering, StatusCompleted}
	for i := 0; i < len(chain)-1; i++ {
		assert.True(t, chain[i].Before(chain[i+1]))
		assert.False(t, chain[i+1].Before(chain[i]))
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("  PICKED_UP ")
	require.NoError(t, err)
	assert.Equal(t, StatusPickedUp, s)

	_, err = ParseStatus("returned")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
