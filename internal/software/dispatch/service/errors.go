package service

import (
	"errors"
	"fmt"

	"delivery-dispatch/internal/domain/delivery"
	"delivery-dispatch/internal/domain/driver"
	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/metrics"
)

var (
	// ErrForbidden marks an event the sender's role may not emit. Such events are dropped silently.
	ErrForbidden = errors.New("event not allowed for this role")
	// ErrNotOwner is reported back to the sender: the delivery belongs to another driver.
	ErrNotOwner = fmt.Errorf("%w: delivery is assigned to another driver", ErrForbidden)

	ErrUnknownEvent       = errors.New("unknown event type")
	ErrBadPayload         = errors.New("invalid event payload")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// classify maps a handler error to the reply for the sender (nil means no reply)
// and the outcome label for metrics.
func classify(err error) (*contracts.Outbound, string) {
	var code string
	switch {
	case err == nil:
		return nil, metrics.OutcomeApplied
	case errors.Is(err, ErrNotOwner):
		code = contracts.CodeForbidden
	case errors.Is(err, ErrForbidden):
		return nil, metrics.OutcomeDropped
	case errors.Is(err, delivery.ErrInvalidTransition):
		code = contracts.CodeInvalidTransition
	case errors.Is(err, delivery.ErrNotFound), errors.Is(err, driver.ErrNotFound):
		code = contracts.CodeNotFound
	case errors.Is(err, driver.ErrStaleSample):
		code = contracts.CodeStaleSample
	case errors.Is(err, ErrUnknownEvent):
		code = contracts.CodeUnknownEvent
	case errors.Is(err, ErrBadPayload):
		code = contracts.CodeBadRequest
	default:
		reply := contracts.NewError(contracts.CodeInternal, "internal error")
		return &reply, metrics.OutcomeFailed
	}
	reply := contracts.NewError(code, err.Error())
	return &reply, metrics.OutcomeRejected
}

func badPayload(err error) error {
	return fmt.Errorf("%w: %w", ErrBadPayload, err)
}
