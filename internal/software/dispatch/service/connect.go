package service

import (
	"context"
	"errors"
	"fmt"

	"delivery-dispatch/internal/domain/driver"
	"delivery-dispatch/internal/general/jwt"
	"delivery-dispatch/internal/general/rooms"
)

// Connect joins the member to the room derived from its session. A driver session also
// brings the driver online: delivering when it still holds active deliveries, available otherwise.
func (r *Router) Connect(ctx context.Context, m rooms.Member, s *jwt.Session) (rooms.RoomID, error) {
	room, ok := rooms.ForSession(s)
	if !ok {
		return rooms.RoomID{}, fmt.Errorf("%w: no room for role %q", ErrForbidden, s.Role)
	}

	if !s.Role.IsDriver() {
		r.rooms.Join(m, room)
		return room, nil
	}

	unlock := r.locks.Lock(driverKey(s.SubjectID))
	defer unlock()

	var d *driver.Driver
	err := r.store.UnitOfWork().WithinTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = r.store.Drivers().GetByID(ctx, s.SubjectID)
		if errors.Is(err, driver.ErrNotFound) {
			d, err = r.enrollDriver(ctx, s)
		}
		if err != nil {
			return err
		}

		active, err := r.store.Deliveries().ListActiveByDriver(ctx, d.ID)
		if err != nil {
			return err
		}
		current := ""
		if n := len(active); n > 0 {
			current = active[n-1].OrderID
		}
		d.GoOnline(current)
		return r.store.Drivers().Update(ctx, d)
	})
	if err != nil {
		return rooms.RoomID{}, fmt.Errorf("bring driver %s online: %w", s.SubjectID, err)
	}

	r.rooms.Join(m, room)
	r.publishDriverStatus(d)

	r.logger.Info(ctx, "driver_online", "Driver connected",
		map[string]any{"driver_id": d.ID, "status": d.Status.String(), "current_order_id": d.CurrentOrderID})
	return room, nil
}

// enrollDriver creates the record for a driver that holds a valid credential but never registered.
func (r *Router) enrollDriver(ctx context.Context, s *jwt.Session) (*driver.Driver, error) {
	name := s.Name
	if name == "" {
		name = s.SubjectID
	}
	d, err := driver.NewDriver(s.SubjectID, name)
	if err != nil {
		return nil, err
	}
	if err := r.store.Drivers().Create(ctx, d); err != nil {
		return nil, err
	}
	r.logger.Info(ctx, "driver_enrolled", "Created driver record on first connection",
		map[string]any{"driver_id": d.ID})
	return d, nil
}

// Disconnect releases every room membership of the member. When the last connection of a
// driver goes away the driver turns offline and the admin room is told once.
func (r *Router) Disconnect(ctx context.Context, m rooms.Member, s *jwt.Session) error {
	r.rooms.LeaveAll(m.ID())

	if s == nil || !s.Role.IsDriver() {
		return nil
	}

	unlock := r.locks.Lock(driverKey(s.SubjectID))
	defer unlock()

	if len(r.rooms.Members(rooms.ForDriver(s.SubjectID))) > 0 {
		return nil
	}

	var d *driver.Driver
	err := r.store.UnitOfWork().WithinTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = r.store.Drivers().GetByID(ctx, s.SubjectID)
		if err != nil {
			return err
		}
		d.GoOffline()
		return r.store.Drivers().Update(ctx, d)
	})
	if err != nil {
		return fmt.Errorf("take driver %s offline: %w", s.SubjectID, err)
	}

	r.publishDriverStatus(d)
	r.logger.Info(ctx, "driver_offline", "Driver disconnected", map[string]any{"driver_id": d.ID})
	return nil
}
