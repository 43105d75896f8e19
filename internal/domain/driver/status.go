package driver

import (
	"errors"
	"strings"
)

// Status is a driver's dispatch availability.
type Status string

const (
	StatusOffline    Status = "offline"
	StatusAvailable  Status = "available"
	StatusDelivering Status = "delivering"
)

var ErrInvalidStatus = errors.New("invalid driver status")

// ParseStatus normalizes (lowercases+trims) and validates a driver status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether the driver status is one of the allowed driver status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusOffline, StatusAvailable, StatusDelivering:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}
