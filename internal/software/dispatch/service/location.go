package service

import (
	"context"

	"delivery-dispatch/internal/domain/delivery"
	"delivery-dispatch/internal/domain/geo"
	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/jwt"
	"delivery-dispatch/internal/general/rooms"
)

// updateLocation records the driver's position, then tells admin and the customer of every
// order the driver is still working on.
func (r *Router) updateLocation(ctx context.Context, s *jwt.Session, p contracts.LocationUpdate) error {
	point, err := geo.NewPoint(p.Latitude, p.Longitude)
	if err != nil {
		return badPayload(err)
	}
	at := p.Timestamp.UTC()
	if p.Timestamp.IsZero() {
		at = r.now()
	}

	unlock := r.locks.Lock(driverKey(s.SubjectID))
	var active []*delivery.Delivery
	err = r.store.UnitOfWork().WithinTx(ctx, func(ctx context.Context) error {
		d, err := r.store.Drivers().GetByID(ctx, s.SubjectID)
		if err != nil {
			return err
		}
		if err := d.MoveTo(point, at); err != nil {
			return badPayload(err)
		}
		if err := r.store.Drivers().Update(ctx, d); err != nil {
			return err
		}
		active, err = r.store.Deliveries().ListActiveByDriver(ctx, d.ID)
		return err
	})
	unlock()
	if err != nil {
		return err
	}

	loc := contracts.Location{Latitude: point.Lat, Longitude: point.Lng}
	r.publish(rooms.Admin(), contracts.EventDriverLocationUpdated, contracts.DriverLocationUpdated{
		DriverID:  s.SubjectID,
		Location:  loc,
		Timestamp: at,
	})
	for _, dl := range active {
		r.publish(rooms.ForCustomer(dl.OrderID), contracts.EventDeliveryLocationUpdated, contracts.DeliveryLocationUpdated{
			DeliveryID: dl.ID,
			Location:   loc,
		})
	}
	return nil
}
