package handler

import (
	"context"
	"net/http"
	"time"

	"delivery-dispatch/internal/ports"
)

// ----- Handler: POST /api/deliveries -----

// handleAssignDelivery lets the dispatch desk assign an order to a driver by hand.
func (handler *DispatchHTTPHandler) handleAssignDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var in ports.AssignDeliveryInput
	if !handler.decodeJSON(ctx, w, r, &in) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	view, err := handler.assigner.AssignDelivery(ctxWithTimeout, in)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusCreated, view)
}
