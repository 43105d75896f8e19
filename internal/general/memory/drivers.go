package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"delivery-dispatch/internal/domain/driver"
)

type driverStore struct {
	store map[string]driver.Driver
	sync.RWMutex
}

func newDriverStore() *driverStore {
	return &driverStore{store: make(map[string]driver.Driver)}
}

func (s *driverStore) Create(_ context.Context, d *driver.Driver) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.store[d.ID]; ok {
		return driver.ErrAlreadyExists
	}
	if d.Email != "" {
		for _, m := range s.store {
			if strings.EqualFold(m.Email, d.Email) {
				return driver.ErrEmailTaken
			}
		}
	}
	s.store[d.ID] = cloneDriver(d)
	return nil
}

func (s *driverStore) GetByID(_ context.Context, driverID string) (*driver.Driver, error) {
	s.RLock()
	defer s.RUnlock()
	if m, ok := s.store[driverID]; ok {
		c := cloneDriver(&m)
		return &c, nil
	}
	return nil, driver.ErrNotFound
}

func (s *driverStore) GetByEmail(_ context.Context, email string) (*driver.Driver, error) {
	s.RLock()
	defer s.RUnlock()
	for _, m := range s.store {
		if m.Email != "" && strings.EqualFold(m.Email, email) {
			c := cloneDriver(&m)
			return &c, nil
		}
	}
	return nil, driver.ErrNotFound
}

func (s *driverStore) Update(_ context.Context, d *driver.Driver) error {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.store[d.ID]; !ok {
		return driver.ErrNotFound
	}
	s.store[d.ID] = cloneDriver(d)
	return nil
}

func (s *driverStore) ListActive(_ context.Context) ([]*driver.Driver, error) {
	s.RLock()
	defer s.RUnlock()
	out := make([]*driver.Driver, 0, len(s.store))
	for _, m := range s.store {
		if m.Status == driver.StatusOffline {
			continue
		}
		c := cloneDriver(&m)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneDriver(d *driver.Driver) driver.Driver {
	c := *d
	if d.LastKnownLocation != nil {
		p := *d.LastKnownLocation
		c.LastKnownLocation = &p
	}
	return c
}
