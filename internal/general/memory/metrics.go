package memory

import (
	"context"
	"sync"

	"delivery-dispatch/internal/domain/driver"
)

// metricStore keeps samples per driver in arrival order.
type metricStore struct {
	store map[string][]driver.MetricSample
	sync.RWMutex
}

func newMetricStore() *metricStore {
	return &metricStore{store: make(map[string][]driver.MetricSample)}
}

func (s *metricStore) Append(_ context.Context, m *driver.MetricSample) error {
	s.Lock()
	defer s.Unlock()
	s.store[m.DriverID] = append(s.store[m.DriverID], *m)
	return nil
}

func (s *metricStore) Latest(_ context.Context, driverID string) (*driver.MetricSample, error) {
	s.RLock()
	defer s.RUnlock()
	samples := s.store[driverID]
	if len(samples) == 0 {
		return nil, nil
	}
	last := samples[len(samples)-1]
	return &last, nil
}

// Recent returns up to limit samples, newest first.
func (s *metricStore) Recent(_ context.Context, driverID string, limit int) ([]*driver.MetricSample, error) {
	s.RLock()
	defer s.RUnlock()
	samples := s.store[driverID]
	if limit <= 0 || limit > len(samples) {
		limit = len(samples)
	}
	out := make([]*driver.MetricSample, 0, limit)
	for i := len(samples) - 1; i >= 0 && len(out) < limit; i-- {
		m := samples[i]
		out = append(out, &m)
	}
	return out, nil
}
