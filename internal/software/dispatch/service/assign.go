package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"delivery-dispatch/internal/domain/delivery"
	"delivery-dispatch/internal/domain/driver"
	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/rooms"
	"delivery-dispatch/internal/ports"
)

// AssignDelivery creates the delivery for an order and puts its driver into delivering.
// Re-assigning an order to the same driver returns the existing delivery unchanged.
func (r *Router) AssignDelivery(ctx context.Context, in ports.AssignDeliveryInput) (ports.DeliveryView, error) {
	orderID := strings.TrimSpace(in.OrderID)
	driverID := strings.TrimSpace(in.DriverID)

	dl, err := delivery.New(r.newID(), orderID, driverID, in.Pickup.Point(), in.Drop.Point())
	if err != nil {
		return ports.DeliveryView{}, badPayload(err)
	}
	dl.CreatedAt = r.now()

	unlockOrder := r.locks.Lock(orderKey(orderID))
	defer unlockOrder()
	unlockDriver := r.locks.Lock(driverKey(driverID))
	defer unlockDriver()

	var (
		drv     *driver.Driver
		created = true
	)
	err = r.store.UnitOfWork().WithinTx(ctx, func(ctx context.Context) error {
		existing, err := r.store.Deliveries().GetByOrderID(ctx, orderID)
		switch {
		case err == nil:
			if existing.DriverID != driverID {
				return delivery.ErrOrderAssigned
			}
			dl, created = existing, false
			return nil
		case !errors.Is(err, delivery.ErrNotFound):
			return err
		}

		drv, err = r.store.Drivers().GetByID(ctx, driverID)
		if err != nil {
			return err
		}
		if err := r.store.Deliveries().Create(ctx, dl); err != nil {
			return err
		}
		drv.StartDelivery(orderID)
		return r.store.Drivers().Update(ctx, drv)
	})
	if err != nil {
		return ports.DeliveryView{}, fmt.Errorf("assign order %s to driver %s: %w", orderID, driverID, err)
	}
	if !created {
		return ports.NewDeliveryView(dl), nil
	}

	assigned := contracts.AdminDeliveryStatus{
		DeliveryID: dl.ID,
		OrderID:    dl.OrderID,
		DriverID:   dl.DriverID,
		Status:     dl.Status.String(),
		Timestamp:  dl.CreatedAt,
	}
	r.publish(rooms.Admin(), contracts.EventDeliveryStatusUpdated, assigned)
	r.publish(rooms.ForDriver(dl.DriverID), contracts.EventDeliveryStatusUpdated, assigned)
	r.publish(rooms.ForCustomer(dl.OrderID), contracts.EventDeliveryStatusUpdated, contracts.CustomerDeliveryStatus{
		DeliveryID: dl.ID,
		OrderID:    dl.OrderID,
		Status:     dl.Status.String(),
		Timestamp:  dl.CreatedAt,
	})
	r.publishDriverStatus(drv)

	r.logger.Info(ctx, "delivery_assigned", "Delivery assigned to driver",
		map[string]any{"delivery_id": dl.ID, "order_id": dl.OrderID, "driver_id": dl.DriverID})
	return ports.NewDeliveryView(dl), nil
}
