package memory

import (
	"context"
	"sort"
	"sync"

	"delivery-dispatch/internal/domain/delivery"
)

type deliveryStore struct {
	store map[string]delivery.Delivery
	sync.RWMutex
}

func newDeliveryStore() *deliveryStore {
	return &deliveryStore{store: make(map[string]delivery.Delivery)}
}

func (s *deliveryStore) Create(_ context.Context, d *delivery.Delivery) error {
	s.Lock()
	defer s.Unlock()
	for _, m := range s.store {
		if m.OrderID == d.OrderID {
			return delivery.ErrOrderAssigned
		}
	}
	s.store[d.ID] = cloneDelivery(d)
	return nil
}

func (s *deliveryStore) GetByID(_ context.Context, deliveryID string) (*delivery.Delivery, error) {
	s.RLock()
	defer s.RUnlock()
	if m, ok := s.store[deliveryID]; ok {
		c := cloneDelivery(&m)
		return &c, nil
	}
	return nil, delivery.ErrNotFound
}

func (s *deliveryStore) GetByOrderID(_ context.Context, orderID string) (*delivery.Delivery, error) {
	s.RLock()
	defer s.RUnlock()
	for _, m := range s.store {
		if m.OrderID == orderID {
			c := cloneDelivery(&m)
			return &c, nil
		}
	}
	return nil, delivery.ErrNotFound
}

func (s *deliveryStore) Update(_ context.Context, d *delivery.Delivery) error {
	s.Lock()
	defer s.Unlock()
	if _, ok := s.store[d.ID]; !ok {
		return delivery.ErrNotFound
	}
	s.store[d.ID] = cloneDelivery(d)
	return nil
}

func (s *deliveryStore) ListActiveByDriver(_ context.Context, driverID string) ([]*delivery.Delivery, error) {
	return s.listActive(func(d *delivery.Delivery) bool { return d.DriverID == driverID }), nil
}

func (s *deliveryStore) ListActive(_ context.Context) ([]*delivery.Delivery, error) {
	return s.listActive(func(*delivery.Delivery) bool { return true }), nil
}

func (s *deliveryStore) listActive(keep func(*delivery.Delivery) bool) []*delivery.Delivery {
	s.RLock()
	defer s.RUnlock()
	var out []*delivery.Delivery
	for _, m := range s.store {
		if !m.Active() || !keep(&m) {
			continue
		}
		c := cloneDelivery(&m)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func cloneDelivery(d *delivery.Delivery) delivery.Delivery {
	c := *d
	if d.CompletedAt != nil {
		t := *d.CompletedAt
		c.CompletedAt = &t
	}
	return c
}
