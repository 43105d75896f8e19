package handler

import (
	"context"
	"net/http"
	"time"
)

// ----- Handler: GET /api/admin/overview -----

func (handler *DispatchHTTPHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	overview, err := handler.overview.Overview(ctxWithTimeout)
	if err != nil {
		handler.serviceError(ctx, w, err)
		return
	}
	handler.jsonResponse(ctx, w, http.StatusOK, overview)
}
