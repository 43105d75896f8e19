package delivery

import (
	"errors"
	"strings"
)

// Status is a delivery status as stored in the `deliveries` table.
type Status string

const (
	StatusAssigned   Status = "assigned"
	StatusPickedUp   Status = "picked_up"
	StatusDelivering Status = "delivering"
	StatusCompleted  Status = "completed"
)

var ErrInvalidStatus = errors.New("invalid delivery status")

// ParseStatus normalizes (lowercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed delivery status constants.
func (status Status) Valid() bool {
	return status.rank() > 0
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// CanTransitionTo reports whether next is the single forward step from status.
func (status Status) CanTransitionTo(next Status) bool {
	switch status {
	case StatusAssigned:
		return next == StatusPickedUp
	case StatusPickedUp:
		return next == StatusDelivering
	case StatusDelivering:
		return next == StatusCompleted
	default:
		return false
	}
}

// Terminal indicates if the status is the final one.
func (status Status) Terminal() bool {
	return status == StatusCompleted
}

// Before orders statuses along assigned < picked_up < delivering < completed.
func (status Status) Before(other Status) bool {
	return status.rank() < other.rank()
}

func (status Status) rank() int {
	switch status {
	case StatusAssigned:
		return 1
	case StatusPickedUp:
		return 2
	case StatusDelivering:
		return 3
	case StatusCompleted:
		return 4
	default:
		return 0
	}
}
