package rooms

import (
	"delivery-dispatch/internal/domain/user"
	"delivery-dispatch/internal/general/jwt"
)

// Kind is the audience a room serves.
type Kind string

const (
	KindAdmin    Kind = "admin"
	KindDriver   Kind = "driver"
	KindCustomer Kind = "customer"
)

// RoomID identifies a multicast group. Callers obtain one only through
// Admin, ForDriver, ForCustomer or ForSession.
type RoomID struct {
	kind Kind
	key  string
}

func Admin() RoomID { return RoomID{kind: KindAdmin} }

func ForDriver(driverID string) RoomID {
	if driverID == "" {
		return RoomID{}
	}
	return RoomID{kind: KindDriver, key: driverID}
}

func ForCustomer(orderID string) RoomID {
	if orderID == "" {
		return RoomID{}
	}
	return RoomID{kind: KindCustomer, key: orderID}
}

// ForSession derives the only room a session may join.
func ForSession(s *jwt.Session) (RoomID, bool) {
	if s == nil {
		return RoomID{}, false
	}
	var r RoomID
	switch s.Role {
	case user.RoleAdmin:
		r = Admin()
	case user.RoleDriver:
		r = ForDriver(s.SubjectID)
	case user.RoleCustomer:
		r = ForCustomer(s.SubjectID)
	}
	return r, !r.IsZero()
}

func (r RoomID) Kind() Kind { return r.kind }

// Key is the driver or order id behind the room; empty for admin.
func (r RoomID) Key() string { return r.key }

func (r RoomID) IsZero() bool { return r.kind == "" }

// String renders the room as "admin", "driver-<id>" or "customer-<orderId>".
func (r RoomID) String() string {
	switch r.kind {
	case "":
		return ""
	case KindAdmin:
		return string(KindAdmin)
	default:
		return string(r.kind) + "-" + r.key
	}
}
