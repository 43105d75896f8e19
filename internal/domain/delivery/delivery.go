package delivery

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"delivery-dispatch/internal/domain/geo"
)

// Delivery tracks one order's physical fulfillment by one driver.
type Delivery struct {
	ID             string
	OrderID        string
	DriverID       string
	Status         Status
	PickupLocation geo.Point
	DropLocation   geo.Point
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

var (
	ErrIDRequired        = errors.New("delivery id is required")
	ErrOrderIDRequired   = errors.New("order id is required")
	ErrDriverIDRequired  = errors.New("driver id is required")
	ErrInvalidTransition = errors.New("invalid delivery status transition")
	ErrNotFound          = errors.New("delivery not found")
	ErrOrderAssigned     = errors.New("order already assigned to another driver")
)

// New creates an assigned delivery.
func New(id, orderID, driverID string, pickup, drop geo.Point) (*Delivery, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, ErrIDRequired
	}
	if orderID = strings.TrimSpace(orderID); orderID == "" {
		return nil, ErrOrderIDRequired
	}
	if driverID = strings.TrimSpace(driverID); driverID == "" {
		return nil, ErrDriverIDRequired
	}
	if err := pickup.Validate(); err != nil {
		return nil, fmt.Errorf("pickup: %w", err)
	}
	if err := drop.Validate(); err != nil {
		return nil, fmt.Errorf("drop: %w", err)
	}

	return &Delivery{
		ID:             id,
		OrderID:        orderID,
		DriverID:       driverID,
		Status:         StatusAssigned,
		PickupLocation: pickup,
		DropLocation:   drop,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Transition applies next if it is the single forward step from the current status.
// Re-submitting completed on a completed delivery is a no-op (changed=false, err=nil).
// On error the delivery is left untouched.
func (d *Delivery) Transition(next Status, at time.Time) (bool, error) {
	if !next.Valid() {
		return false, ErrInvalidStatus
	}
	if d.Status.Terminal() && next.Terminal() {
		return false, nil
	}
	if !next.Before(d.Status) && next != d.Status && !d.Status.CanTransitionTo(next) {
		return false, fmt.Errorf("%w: %s -> %s skips a step", ErrInvalidTransition, d.Status, next)
	}
	if !d.Status.CanTransitionTo(next) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, next)
	}

	d.Status = next
	if next.Terminal() {
		completed := at.UTC()
		d.CompletedAt = &completed
	}
	return true, nil
}

// Active reports whether the delivery still binds its driver.
func (d *Delivery) Active() bool {
	return !d.Status.Terminal()
}
