package ports

import (
	"context"
	"time"

	"delivery-dispatch/internal/domain/delivery"
	"delivery-dispatch/internal/domain/driver"
	"delivery-dispatch/internal/domain/geo"
)

// ----- DTOs for the dispatch HTTP API -----

// RegisterDriverInput is the validated input for POST /api/drivers/register.
type RegisterDriverInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

type RegisterDriverResult struct {
	DriverID string `json:"driverId"`
}

// AuthDriverInput is the validated input for POST /api/drivers/auth.
type AuthDriverInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthDriverResult struct {
	Token  string     `json:"token"`
	Driver DriverView `json:"driver"`
}

// GeoPoint represents a simple latitude/longitude pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p GeoPoint) Point() geo.Point { return geo.Point{Lat: p.Latitude, Lng: p.Longitude} }

func GeoPointFrom(p geo.Point) GeoPoint { return GeoPoint{Latitude: p.Lat, Longitude: p.Lng} }

// DriverView is the public projection of a driver; credentials never leave the service.
type DriverView struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	Status            string    `json:"status"`
	LastKnownLocation *GeoPoint `json:"lastKnownLocation,omitempty"`
	LastUpdateAt      time.Time `json:"lastUpdateAt"`
	CurrentOrderID    string    `json:"currentOrderId,omitempty"`
}

func NewDriverView(d *driver.Driver) DriverView {
	v := DriverView{
		ID:             d.ID,
		Name:           d.Name,
		Email:          d.Email,
		Phone:          d.Phone,
		Status:         d.Status.String(),
		LastUpdateAt:   d.LastUpdateAt,
		CurrentOrderID: d.CurrentOrderID,
	}
	if d.LastKnownLocation != nil {
		p := GeoPointFrom(*d.LastKnownLocation)
		v.LastKnownLocation = &p
	}
	return v
}

// MetricView is one device-health sample.
type MetricView struct {
	BatteryLevel   int       `json:"batteryLevel"`
	SignalStrength int       `json:"signalStrength"`
	Timestamp      time.Time `json:"timestamp"`
}

// AssignDeliveryInput creates a delivery for an order. It arrives from POST /api/deliveries
// or from a payment confirmation on the broker.
type AssignDeliveryInput struct {
	OrderID  string   `json:"orderId"`
	DriverID string   `json:"driverId"`
	Pickup   GeoPoint `json:"pickup"`
	Drop     GeoPoint `json:"drop"`
}

type DeliveryView struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"orderId"`
	DriverID    string     `json:"driverId"`
	Status      string     `json:"status"`
	Pickup      GeoPoint   `json:"pickup"`
	Drop        GeoPoint   `json:"drop"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func NewDeliveryView(d *delivery.Delivery) DeliveryView {
	return DeliveryView{
		ID:          d.ID,
		OrderID:     d.OrderID,
		DriverID:    d.DriverID,
		Status:      d.Status.String(),
		Pickup:      GeoPointFrom(d.PickupLocation),
		Drop:        GeoPointFrom(d.DropLocation),
		CreatedAt:   d.CreatedAt,
		CompletedAt: d.CompletedAt,
	}
}

// OverviewView is the admin dashboard snapshot served on GET /api/admin/overview.
type OverviewView struct {
	Timestamp time.Time `json:"timestamp"`
	Metrics   struct {
		AvailableDrivers  int `json:"availableDrivers"`
		DeliveringDrivers int `json:"deliveringDrivers"`
		ActiveDeliveries  int `json:"activeDeliveries"`
		LiveConnections   int `json:"liveConnections"`
		AdminWatchers     int `json:"adminWatchers"`
	} `json:"metrics"`
	Deliveries []DeliveryView `json:"deliveries"`
}

// ----- Service interfaces -----

// DriverAccountService covers driver registration, login and admin listings.
type DriverAccountService interface {
	RegisterDriver(ctx context.Context, in RegisterDriverInput) (RegisterDriverResult, error)
	AuthenticateDriver(ctx context.Context, in AuthDriverInput) (AuthDriverResult, error)
	ActiveDrivers(ctx context.Context) ([]DriverView, error)
	DriverMetrics(ctx context.Context, driverID string, limit int) ([]MetricView, error)
}

// DeliveryAssigner creates deliveries and notifies the affected rooms.
type DeliveryAssigner interface {
	AssignDelivery(ctx context.Context, in AssignDeliveryInput) (DeliveryView, error)
}

// DispatchOverview aggregates live dispatch state for the admin dashboard.
type DispatchOverview interface {
	Overview(ctx context.Context) (OverviewView, error)
}
