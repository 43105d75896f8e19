package service

import (
	"context"
	"fmt"

	"delivery-dispatch/internal/domain/driver"
	"delivery-dispatch/internal/general/rooms"
	"delivery-dispatch/internal/ports"
)

// Overview collects a set of aggregate numbers about the current dispatch state.
func (r *Router) Overview(ctx context.Context) (ports.OverviewView, error) {
	res := ports.OverviewView{Timestamp: r.now(), Deliveries: []ports.DeliveryView{}}

	err := r.store.UnitOfWork().WithinTx(ctx, func(txCtx context.Context) error {
		drivers, err := r.store.Drivers().ListActive(txCtx)
		if err != nil {
			return err
		}
		for _, d := range drivers {
			switch d.Status {
			case driver.StatusAvailable:
				res.Metrics.AvailableDrivers++
			case driver.StatusDelivering:
				res.Metrics.DeliveringDrivers++
			}
		}

		// offline drivers keep their open deliveries
		active, err := r.store.Deliveries().ListActive(txCtx)
		if err != nil {
			return err
		}
		for _, dl := range active {
			res.Deliveries = append(res.Deliveries, ports.NewDeliveryView(dl))
		}
		return nil
	})
	if err != nil {
		return ports.OverviewView{}, fmt.Errorf("overview: %w", err)
	}

	res.Metrics.ActiveDeliveries = len(res.Deliveries)
	res.Metrics.LiveConnections = r.rooms.Size()
	res.Metrics.AdminWatchers = len(r.rooms.Members(rooms.Admin()))
	return res, nil
}

var _ ports.DispatchOverview = (*Router)(nil)
