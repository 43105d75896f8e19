package driver

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"delivery-dispatch/internal/domain/geo"
)

// Driver is the domain entity corresponding to the `drivers` table.
type Driver struct {
	// Identity & audit
	ID        string
	CreatedAt time.Time

	// Profile and credentials
	Name         string
	Email        string
	Phone        string
	PasswordHash string

	// Operational state
	Status            Status
	LastKnownLocation *geo.Point
	LastUpdateAt      time.Time
	CurrentOrderID    string
}

var (
	ErrDriverIDRequired = errors.New("driver id is required")
	ErrNameRequired     = errors.New("driver name is required")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrNotFound         = errors.New("driver not found")
	ErrEmailTaken       = errors.New("email already registered")
	ErrAlreadyExists    = errors.New("driver already exists")
)

// NewDriver creates a new Driver entity. Drivers start offline until a connection is observed.
func NewDriver(id, name string) (*Driver, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, ErrDriverIDRequired
	}
	if name = strings.TrimSpace(name); name == "" {
		return nil, ErrNameRequired
	}

	now := time.Now().UTC()
	return &Driver{
		ID:           id,
		CreatedAt:    now,
		Name:         name,
		Status:       StatusOffline,
		LastUpdateAt: now,
	}, nil
}

// SetCredentials attaches a login email and an already-hashed password.
func (driver *Driver) SetCredentials(email, passwordHash string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return ErrInvalidEmail
	}
	driver.Email = strings.ToLower(addr.Address)
	driver.PasswordHash = passwordHash
	return nil
}

// ---- State changes ----

// GoOnline marks a freshly connected driver. A driver that still holds active deliveries
// resumes as delivering.
func (driver *Driver) GoOnline(activeOrderID string) {
	if activeOrderID != "" {
		driver.CurrentOrderID = activeOrderID
		driver.setStatus(StatusDelivering)
		return
	}
	driver.CurrentOrderID = ""
	driver.setStatus(StatusAvailable)
}

// GoOffline marks the driver offline. The current order is kept so it can be resumed.
func (driver *Driver) GoOffline() {
	driver.setStatus(StatusOffline)
}

// StartDelivery records a newly assigned order. An offline driver stays offline and
// resumes as delivering on its next GoOnline.
func (driver *Driver) StartDelivery(orderID string) {
	driver.CurrentOrderID = orderID
	if driver.Status == StatusOffline {
		driver.touch()
		return
	}
	driver.setStatus(StatusDelivering)
}

// FinishDelivery clears the finished order. nextOrderID is the most recent remaining active
// order, if any; with one left the driver stays delivering.
func (driver *Driver) FinishDelivery(nextOrderID string) {
	driver.CurrentOrderID = nextOrderID
	switch {
	case driver.Status == StatusOffline:
		driver.touch()
	case nextOrderID != "":
		driver.setStatus(StatusDelivering)
	default:
		driver.setStatus(StatusAvailable)
	}
}

// MoveTo records the latest known location.
func (driver *Driver) MoveTo(p geo.Point, at time.Time) error {
	if err := p.Validate(); err != nil {
		return err
	}
	driver.LastKnownLocation = &p
	driver.LastUpdateAt = at.UTC()
	return nil
}

// ---- internal helpers ----

func (driver *Driver) setStatus(status Status) {
	driver.Status = status
	driver.touch()
}

func (driver *Driver) touch() {
	driver.LastUpdateAt = time.Now().UTC()
}
