package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType names every frame that crosses the websocket.
type EventType string

const (
	EventAuth        EventType = "auth"
	EventAuthSuccess EventType = "auth_success"
	EventAuthError   EventType = "auth_error"

	// client -> server
	EventUpdateLocation       EventType = "updateLocation"
	EventUpdateDeviceStatus   EventType = "updateDeviceStatus"
	EventUpdateDeliveryStatus EventType = "updateDeliveryStatus"
	EventSendMessage          EventType = "sendMessage"

	// server -> room
	EventDriverLocationUpdated   EventType = "driverLocationUpdated"
	EventDeliveryLocationUpdated EventType = "deliveryLocationUpdated"
	EventDriverDeviceAlert       EventType = "driverDeviceAlert"
	EventDeliveryStatusUpdated   EventType = "deliveryStatusUpdated"
	EventDriverStatusChanged     EventType = "driverStatusChanged"
	EventNewMessage              EventType = "newMessage"

	// server -> sender
	EventError EventType = "error"
	EventAck   EventType = "ack"
)

var ErrEmptyPayload = errors.New("event payload is empty")

func (t EventType) String() string { return string(t) }

// IsInbound reports whether clients are allowed to send this event.
func (t EventType) IsInbound() bool {
	switch t {
	case EventUpdateLocation, EventUpdateDeviceStatus, EventUpdateDeliveryStatus, EventSendMessage:
		return true
	}
	return false
}

// Inbound is a frame as read off the wire: the payload stays raw until the event type is known.
type Inbound struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is a frame about to be written: {"type": ..., "data": {...}}.
type Outbound struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

func NewOutbound(t EventType, data any) Outbound {
	return Outbound{Type: t, Data: data}
}

// NewError builds an error reply addressed to the sender only.
func NewError(code, msg string) Outbound {
	return Outbound{Type: EventError, Data: ErrorPayload{Code: code, Error: msg}}
}

// NewAck confirms an inbound event was applied.
func NewAck(forEvent EventType) Outbound {
	return Outbound{Type: EventAck, Data: AckPayload{For: forEvent}}
}

// Decode unmarshals the frame payload into T.
func Decode[T any](in Inbound) (T, error) {
	var v T
	if len(in.Data) == 0 || string(in.Data) == "null" {
		return v, ErrEmptyPayload
	}
	if err := json.Unmarshal(in.Data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", in.Type, err)
	}
	return v, nil
}

// Encode marshals data and wraps it into an Inbound frame. Used by clients and tests.
func Encode(t EventType, data any) (Inbound, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Inbound{}, err
	}
	return Inbound{Type: t, Data: raw}, nil
}
