package service

import (
	"context"

	"delivery-dispatch/internal/domain/user"
	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/jwt"
	"delivery-dispatch/internal/general/metrics"
)

// inboundRoles lists who may emit each client event. A nil entry means any role.
var inboundRoles = map[contracts.EventType][]user.Role{
	contracts.EventUpdateLocation:       {user.RoleDriver},
	contracts.EventUpdateDeviceStatus:   {user.RoleDriver},
	contracts.EventUpdateDeliveryStatus: {user.RoleDriver},
	contracts.EventSendMessage:          nil,
}

// Handle applies one inbound event. It returns the reply for the sender, if any, and the
// error that produced it. Role mismatches return ErrForbidden with no reply.
func (r *Router) Handle(ctx context.Context, s *jwt.Session, in contracts.Inbound) (*contracts.Outbound, error) {
	reply, err := r.dispatch(ctx, s, in)

	errReply, outcome := classify(err)
	if errReply != nil {
		reply = errReply
	}
	r.metrics.InboundEvent(in.Type, outcome)

	details := map[string]any{"type": in.Type, "subject_id": s.SubjectID, "role": s.Role}
	switch outcome {
	case metrics.OutcomeDropped, metrics.OutcomeRejected:
		details["reason"] = err.Error()
		r.logger.Debug(ctx, "ws_event_"+outcome, "Inbound event not applied", details)
	case metrics.OutcomeFailed:
		r.logger.Error(ctx, "ws_event_failed", "Inbound event failed", err, details)
	}
	return reply, err
}

func (r *Router) dispatch(ctx context.Context, s *jwt.Session, in contracts.Inbound) (*contracts.Outbound, error) {
	allowed, known := inboundRoles[in.Type]
	if !known {
		return nil, ErrUnknownEvent
	}
	if err := jwt.RoleAllowed(s, allowed...); err != nil {
		return nil, ErrForbidden
	}

	switch in.Type {
	case contracts.EventUpdateLocation:
		p, err := contracts.Decode[contracts.LocationUpdate](in)
		if err != nil {
			return nil, badPayload(err)
		}
		return nil, r.updateLocation(ctx, s, p)

	case contracts.EventUpdateDeviceStatus:
		p, err := contracts.Decode[contracts.DeviceStatusUpdate](in)
		if err != nil {
			return nil, badPayload(err)
		}
		return nil, r.updateDeviceStatus(ctx, s, p)

	case contracts.EventUpdateDeliveryStatus:
		p, err := contracts.Decode[contracts.DeliveryStatusUpdate](in)
		if err != nil {
			return nil, badPayload(err)
		}
		if err := r.updateDeliveryStatus(ctx, s, p); err != nil {
			return nil, err
		}
		ack := contracts.NewAck(in.Type)
		return &ack, nil

	case contracts.EventSendMessage:
		p, err := contracts.Decode[contracts.SendMessage](in)
		if err != nil {
			return nil, badPayload(err)
		}
		if err := r.sendMessage(s, p); err != nil {
			return nil, err
		}
		ack := contracts.NewAck(in.Type)
		return &ack, nil
	}
	return nil, ErrUnknownEvent
}
