package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"delivery-dispatch/internal/domain/driver"
	"delivery-dispatch/internal/domain/user"
	"delivery-dispatch/internal/general/jwt"
	"delivery-dispatch/internal/general/logger"
	"delivery-dispatch/internal/ports"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength  = 8
	defaultMetricLimit = 50
	maxMetricLimit     = 500
)

// Accounts registers and logs in drivers and serves the admin listings.
type Accounts struct {
	logger     *logger.Logger
	store      ports.Store
	auth       *jwt.Manager
	bcryptCost int
	newID      func() string
}

type AccountsOption func(*Accounts)

// WithBcryptCost lowers the hashing cost, used by tests.
func WithBcryptCost(cost int) AccountsOption {
	return func(a *Accounts) { a.bcryptCost = cost }
}

func WithAccountIDGenerator(newID func() string) AccountsOption {
	return func(a *Accounts) { a.newID = newID }
}

func NewAccounts(log *logger.Logger, store ports.Store, auth *jwt.Manager, opts ...AccountsOption) *Accounts {
	a := &Accounts{
		logger:     log,
		store:      store,
		auth:       auth,
		bcryptCost: bcrypt.DefaultCost,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ ports.DriverAccountService = (*Accounts)(nil)

// RegisterDriver creates an offline driver with a hashed password.
func (a *Accounts) RegisterDriver(ctx context.Context, in ports.RegisterDriverInput) (ports.RegisterDriverResult, error) {
	if len(in.Password) < minPasswordLength {
		return ports.RegisterDriverResult{}, ErrWeakPassword
	}

	d, err := driver.NewDriver(a.newID(), in.Name)
	if err != nil {
		return ports.RegisterDriverResult{}, err
	}
	d.Phone = strings.TrimSpace(in.Phone)

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), a.bcryptCost)
	if err != nil {
		return ports.RegisterDriverResult{}, fmt.Errorf("hash password: %w", err)
	}
	if err := d.SetCredentials(in.Email, string(hash)); err != nil {
		return ports.RegisterDriverResult{}, err
	}

	err = a.store.UnitOfWork().WithinTx(ctx, func(ctx context.Context) error {
		return a.store.Drivers().Create(ctx, d)
	})
	if err != nil {
		return ports.RegisterDriverResult{}, err
	}

	a.logger.Info(ctx, "driver_registered", "Driver registered", map[string]any{"driver_id": d.ID})
	return ports.RegisterDriverResult{DriverID: d.ID}, nil
}

// AuthenticateDriver checks email and password and issues a driver token.
func (a *Accounts) AuthenticateDriver(ctx context.Context, in ports.AuthDriverInput) (ports.AuthDriverResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return ports.AuthDriverResult{}, ErrInvalidCredentials
	}

	var d *driver.Driver
	err := a.store.UnitOfWork().WithinTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = a.store.Drivers().GetByEmail(ctx, email)
		return err
	})
	if errors.Is(err, driver.ErrNotFound) {
		return ports.AuthDriverResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return ports.AuthDriverResult{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(in.Password)) != nil {
		return ports.AuthDriverResult{}, ErrInvalidCredentials
	}

	token, _, err := a.auth.IssueUserToken(d.ID, user.RoleDriver, d.Name)
	if err != nil {
		return ports.AuthDriverResult{}, fmt.Errorf("issue token: %w", err)
	}

	a.logger.Info(ctx, "driver_authenticated", "Driver logged in", map[string]any{"driver_id": d.ID})
	return ports.AuthDriverResult{Token: token, Driver: ports.NewDriverView(d)}, nil
}

// ActiveDrivers lists every driver that is not offline.
func (a *Accounts) ActiveDrivers(ctx context.Context) ([]ports.DriverView, error) {
	var drivers []*driver.Driver
	err := a.store.UnitOfWork().WithinTx(ctx, func(ctx context.Context) error {
		var err error
		drivers, err = a.store.Drivers().ListActive(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]ports.DriverView, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, ports.NewDriverView(d))
	}
	return out, nil
}

// DriverMetrics returns the newest device samples of a driver, newest first.
func (a *Accounts) DriverMetrics(ctx context.Context, driverID string, limit int) ([]ports.MetricView, error) {
	if limit <= 0 {
		limit = defaultMetricLimit
	}
	if limit > maxMetricLimit {
		limit = maxMetricLimit
	}
	var samples []*driver.MetricSample
	err := a.store.UnitOfWork().WithinTx(ctx, func(ctx context.Context) error {
		if _, err := a.store.Drivers().GetByID(ctx, driverID); err != nil {
			return err
		}
		var err error
		samples, err = a.store.Metrics().Recent(ctx, driverID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]ports.MetricView, 0, len(samples))
	for _, s := range samples {
		out = append(out, ports.MetricView{
			BatteryLevel:   s.BatteryLevel,
			SignalStrength: s.SignalStrength,
			Timestamp:      s.Timestamp,
		})
	}
	return out, nil
}
