package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"delivery-dispatch/internal/ports"
)

// ----- Handler: POST /api/drivers/register -----

func (handler *DispatchHTTPHandler) handleRegisterDriver(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var in ports.RegisterDriverInput
	if !handler.decodeJSON(ctx, w, r, &in) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.accounts.RegisterDriver(ctxWithTimeout, in)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusCreated, res)
}

// ----- Handler: POST /api/drivers/auth -----

func (handler *DispatchHTTPHandler) handleAuthDriver(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var in ports.AuthDriverInput
	if !handler.decodeJSON(ctx, w, r, &in) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.accounts.AuthenticateDriver(ctxWithTimeout, in)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: GET /api/drivers/active -----

func (handler *DispatchHTTPHandler) handleActiveDrivers(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	drivers, err := handler.accounts.ActiveDrivers(ctxWithTimeout)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"drivers": drivers})
}

// ----- Handler: GET /api/drivers/{driver_id}/metrics?limit=N -----

func (handler *DispatchHTTPHandler) handleDriverMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	driverID := r.PathValue("driver_id")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			handler.httpError(ctx, w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	samples, err := handler.accounts.DriverMetrics(ctxWithTimeout, driverID, limit)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"driverId": driverID, "metrics": samples})
}
