package contracts

import "time"

// ------------ client -> server -------------

type LocationUpdate struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type DeviceStatusUpdate struct {
	BatteryLevel   int       `json:"batteryLevel"`
	SignalStrength int       `json:"signalStrength"`
	Timestamp      time.Time `json:"timestamp"`
}

type DeliveryStatusUpdate struct {
	DeliveryID string `json:"deliveryId"`
	Status     string `json:"status"`
	Notes      string `json:"notes,omitempty"`
}

type SendMessage struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

// ------------ server -> rooms -------------

// DriverLocationUpdated goes to admin.
type DriverLocationUpdated struct {
	DriverID  string    `json:"driverId"`
	Location  Location  `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// DeliveryLocationUpdated goes to the customer room of each active order.
type DeliveryLocationUpdated struct {
	DeliveryID string   `json:"deliveryId"`
	Location   Location `json:"location"`
}

type DriverDeviceAlert struct {
	DriverID       string    `json:"driverId"`
	BatteryLevel   int       `json:"batteryLevel"`
	SignalStrength int       `json:"signalStrength"`
	Timestamp      time.Time `json:"timestamp"`
}

// AdminDeliveryStatus carries the acting driver and notes.
type AdminDeliveryStatus struct {
	DeliveryID string    `json:"deliveryId"`
	OrderID    string    `json:"orderId"`
	DriverID   string    `json:"driverId"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// CustomerDeliveryStatus is status only, nothing that identifies the driver.
type CustomerDeliveryStatus struct {
	DeliveryID string    `json:"deliveryId"`
	OrderID    string    `json:"orderId"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

type DriverStatusChanged struct {
	DriverID       string    `json:"driverId"`
	Status         string    `json:"status"`
	CurrentOrderID string    `json:"currentOrderId,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type NewMessage struct {
	SenderID    string    `json:"senderId"`
	SenderType  string    `json:"senderType"`
	RecipientID string    `json:"recipientId"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}

// ------------ server -> sender -------------

type ErrorPayload struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type AckPayload struct {
	For EventType `json:"for"`
}

type AuthSuccess struct {
	SubjectID string   `json:"subject_id"`
	Role      string   `json:"role"`
	Rooms     []string `json:"rooms"`
}

// ------------ broker -------------

// DeliveryAssignment is consumed from payment_topic once an order is paid.
// Routing key: "payment.confirmed.{order_id}".
type DeliveryAssignment struct {
	OrderID  string   `json:"orderId"`
	DriverID string   `json:"driverId"`
	Pickup   Location `json:"pickup"`
	Drop     Location `json:"drop"`
	Envelope
}

// MirroredEvent is the broker copy of a room publish.
// Routing key: "dispatch.{room_kind}.{event}" on ExchangeDispatchTopic.
type MirroredEvent struct {
	Room  string    `json:"room"`
	Event EventType `json:"event"`
	Data  any       `json:"data"`
	Envelope
}
