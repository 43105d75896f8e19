package metrics

import (
	"errors"
	"net/http"

	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/rooms"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes for inbound events.
const (
	OutcomeApplied  = "applied"
	OutcomeDropped  = "dropped"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Recorder holds the dispatch service instruments. A nil *Recorder records nothing.
type Recorder struct {
	connections  prometheus.Gauge
	inbound      *prometheus.CounterVec
	publishes    *prometheus.CounterVec
	deviceAlerts prometheus.Counter
	authFailures *prometheus.CounterVec
}

// NewRecorder registers the instruments on reg. A nil registerer defaults to the global one.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{}
	var err error
	if r.connections, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_connections_active",
		Help: "Authenticated websocket connections currently open",
	})); err != nil {
		return nil, err
	}
	if r.inbound, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_inbound_events_total",
		Help: "Inbound websocket events by type and outcome",
	}, []string{"type", "outcome"})); err != nil {
		return nil, err
	}
	if r.publishes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_room_publishes_total",
		Help: "Room publishes by event type",
	}, []string{"event"})); err != nil {
		return nil, err
	}
	if r.deviceAlerts, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_device_alerts_total",
		Help: "Device alerts raised for low battery or weak signal",
	})); err != nil {
		return nil, err
	}
	if r.authFailures, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_auth_failures_total",
		Help: "Refused websocket handshakes by reason",
	}, []string{"reason"})); err != nil {
		return nil, err
	}
	return r, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (r *Recorder) ConnectionOpened() {
	if r != nil {
		r.connections.Inc()
	}
}

func (r *Recorder) ConnectionClosed() {
	if r != nil {
		r.connections.Dec()
	}
}

// UnknownEventLabel replaces the type label of frames clients may not send.
const UnknownEventLabel = "unknown"

// InboundEvent counts one client frame. The type label is bounded to the inbound event set.
func (r *Recorder) InboundEvent(t contracts.EventType, outcome string) {
	if r == nil {
		return
	}
	label := UnknownEventLabel
	if t.IsInbound() {
		label = t.String()
	}
	r.inbound.WithLabelValues(label, outcome).Inc()
}

func (r *Recorder) DeviceAlert() {
	if r != nil {
		r.deviceAlerts.Inc()
	}
}

func (r *Recorder) AuthFailure(reason string) {
	if r != nil {
		r.authFailures.WithLabelValues(reason).Inc()
	}
}

// Published implements rooms.Observer.
func (r *Recorder) Published(_ rooms.RoomID, ev contracts.Outbound, _ int) {
	if r != nil {
		r.publishes.WithLabelValues(ev.Type.String()).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

var _ rooms.Observer = (*Recorder)(nil)
