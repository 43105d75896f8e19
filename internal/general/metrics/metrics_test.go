package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/rooms"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.ConnectionOpened()
	r.ConnectionOpened()
	r.ConnectionClosed()
	r.InboundEvent(contracts.EventUpdateLocation, OutcomeDropped)
	r.DeviceAlert()
	r.AuthFailure("auth_missing")
	r.Published(rooms.Admin(), contracts.NewOutbound(contracts.EventDriverDeviceAlert, nil), 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.inbound.WithLabelValues("updateLocation", OutcomeDropped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.deviceAlerts))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.authFailures.WithLabelValues("auth_missing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.publishes.WithLabelValues("driverDeviceAlert")))
}

func TestInboundEventBoundsTypeLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		r.InboundEvent(contracts.EventType(fmt.Sprintf("junk-%d", i)), OutcomeRejected)
	}
	r.InboundEvent(contracts.EventDriverDeviceAlert, OutcomeRejected)
	r.InboundEvent(contracts.EventSendMessage, OutcomeApplied)

	assert.Equal(t, 2, testutil.CollectAndCount(r.inbound))
	assert.Equal(t, 101.0, testutil.ToFloat64(r.inbound.WithLabelValues(UnknownEventLabel, OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.inbound.WithLabelValues("sendMessage", OutcomeApplied)))
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRecorder(reg)
	require.NoError(t, err)
	second, err := NewRecorder(reg)
	require.NoError(t, err)

	first.DeviceAlert()
	assert.Equal(t, 1.0, testutil.ToFloat64(second.deviceAlerts))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ConnectionOpened()
		r.InboundEvent(contracts.EventSendMessage, OutcomeApplied)
		r.Published(rooms.Admin(), contracts.NewAck(contracts.EventSendMessage), 0)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)
	r.DeviceAlert()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dispatch_device_alerts_total 1")
}
