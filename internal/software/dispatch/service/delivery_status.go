package service

import (
	"context"
	"strings"

	"delivery-dispatch/internal/domain/delivery"
	"delivery-dispatch/internal/domain/driver"
	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/jwt"
	"delivery-dispatch/internal/general/rooms"
)

// updateDeliveryStatus moves a delivery one step forward on behalf of its driver.
// Accepted changes notify admin (with driver and notes) and the order's customer (status only).
func (r *Router) updateDeliveryStatus(ctx context.Context, s *jwt.Session, p contracts.DeliveryStatusUpdate) error {
	deliveryID := strings.TrimSpace(p.DeliveryID)
	if deliveryID == "" {
		return badPayload(delivery.ErrIDRequired)
	}
	next, err := delivery.ParseStatus(p.Status)
	if err != nil {
		return badPayload(err)
	}

	unlockDelivery := r.locks.Lock(deliveryKey(deliveryID))
	defer unlockDelivery()
	unlockDriver := r.locks.Lock(driverKey(s.SubjectID))
	defer unlockDriver()

	var (
		dl            *delivery.Delivery
		drv           *driver.Driver
		changed       bool
		driverChanged bool
	)
	at := r.now()
	err = r.store.UnitOfWork().WithinTx(ctx, func(ctx context.Context) error {
		var err error
		dl, err = r.store.Deliveries().GetByID(ctx, deliveryID)
		if err != nil {
			return err
		}
		if dl.DriverID != s.SubjectID {
			return ErrNotOwner
		}

		changed, err = dl.Transition(next, at)
		if err != nil || !changed {
			return err
		}
		if err := r.store.Deliveries().Update(ctx, dl); err != nil {
			return err
		}
		if dl.Status != delivery.StatusCompleted {
			return nil
		}

		drv, err = r.store.Drivers().GetByID(ctx, dl.DriverID)
		if err != nil {
			return err
		}
		remaining, err := r.store.Deliveries().ListActiveByDriver(ctx, dl.DriverID)
		if err != nil {
			return err
		}
		nextOrder := ""
		if n := len(remaining); n > 0 {
			nextOrder = remaining[n-1].OrderID
		}
		before := *drv
		drv.FinishDelivery(nextOrder)
		driverChanged = before.Status != drv.Status || before.CurrentOrderID != drv.CurrentOrderID
		return r.store.Drivers().Update(ctx, drv)
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	r.publish(rooms.Admin(), contracts.EventDeliveryStatusUpdated, contracts.AdminDeliveryStatus{
		DeliveryID: dl.ID,
		OrderID:    dl.OrderID,
		DriverID:   dl.DriverID,
		Status:     dl.Status.String(),
		Notes:      p.Notes,
		Timestamp:  at,
	})
	r.publish(rooms.ForCustomer(dl.OrderID), contracts.EventDeliveryStatusUpdated, contracts.CustomerDeliveryStatus{
		DeliveryID: dl.ID,
		OrderID:    dl.OrderID,
		Status:     dl.Status.String(),
		Timestamp:  at,
	})
	if driverChanged {
		r.publishDriverStatus(drv)
	}

	r.logger.Info(ctx, "delivery_status_updated", "Delivery status changed",
		map[string]any{"delivery_id": dl.ID, "order_id": dl.OrderID, "driver_id": dl.DriverID, "status": dl.Status.String()})
	return nil
}
