package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"delivery-dispatch/internal/domain/delivery"
	"delivery-dispatch/internal/domain/driver"
	"delivery-dispatch/internal/domain/geo"
	"delivery-dispatch/internal/domain/user"
	"delivery-dispatch/internal/general/jwt"
	"delivery-dispatch/internal/general/logger"
	"delivery-dispatch/internal/ports"
	"delivery-dispatch/internal/software/dispatch/service"

	"github.com/jackc/pgx/v5/pgconn"
)

// DispatchHTTPHandler adapts HTTP requests to the account and assignment services and
// mounts the websocket endpoint next to them.
type DispatchHTTPHandler struct {
	accounts  ports.DriverAccountService
	assigner  ports.DeliveryAssigner
	logger    *logger.Logger
	auth      *jwt.Manager
	gk        *jwt.Gatekeeper
	overview  ports.DispatchOverview
	websocket http.Handler
	metrics   http.Handler
	devTokens bool
}

type Option func(*DispatchHTTPHandler)

// WithWebSocket mounts ws on GET /ws.
func WithWebSocket(ws http.Handler) Option {
	return func(h *DispatchHTTPHandler) { h.websocket = ws }
}

// WithOverview mounts the admin dashboard snapshot on GET /api/admin/overview.
func WithOverview(o ports.DispatchOverview) Option {
	return func(h *DispatchHTTPHandler) { h.overview = o }
}

// WithMetrics mounts a Prometheus handler on GET /metrics.
func WithMetrics(m http.Handler) Option {
	return func(h *DispatchHTTPHandler) { h.metrics = m }
}

// WithDevTokens enables POST /tokens, which mints tokens for any role without a password.
func WithDevTokens(enabled bool) Option {
	return func(h *DispatchHTTPHandler) { h.devTokens = enabled }
}

// NewDispatchHTTPHandler wires an HTTP handler around the dispatch services.
func NewDispatchHTTPHandler(
	accounts ports.DriverAccountService,
	assigner ports.DeliveryAssigner,
	logger *logger.Logger,
	auth *jwt.Manager,
	opts ...Option,
) *DispatchHTTPHandler {
	h := &DispatchHTTPHandler{
		accounts: accounts,
		assigner: assigner,
		logger:   logger,
		auth:     auth,
		gk:       jwt.NewGatekeeper(auth),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts dispatch endpoints on the provided mux.
func (handler *DispatchHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/drivers/register", handler.handleRegisterDriver)
	mux.HandleFunc("POST /api/drivers/auth", handler.handleAuthDriver)

	mux.HandleFunc("GET /api/drivers/active",
		jwt.AuthMiddlewareFunc(handler.gk, user.RoleAdmin)(handler.handleActiveDrivers),
	)
	mux.HandleFunc("GET /api/drivers/{driver_id}/metrics",
		jwt.AuthMiddlewareFunc(handler.gk, user.RoleAdmin)(handler.handleDriverMetrics),
	)
	mux.HandleFunc("POST /api/deliveries",
		jwt.AuthMiddlewareFunc(handler.gk, user.RoleAdmin)(handler.handleAssignDelivery),
	)

	if handler.overview != nil {
		mux.HandleFunc("GET /api/admin/overview",
			jwt.AuthMiddlewareFunc(handler.gk, user.RoleAdmin)(handler.handleOverview),
		)
	}

	if handler.websocket != nil {
		mux.Handle("GET /ws", handler.websocket)
	}
	if handler.metrics != nil {
		mux.Handle("GET /metrics", handler.metrics)
	}
	if handler.devTokens {
		mux.HandleFunc("POST /tokens", handler.handleCreateToken)
	}
	mux.HandleFunc("GET /health", handler.handleHealth)
}

// ----- general helpers -----

// decodeJSON reads a single JSON object from the body, rejecting unknown content types.
func (handler *DispatchHTTPHandler) decodeJSON(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// serviceError maps a service error onto an HTTP status and a client-safe message.
func (handler *DispatchHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrBadPayload),
		errors.Is(err, driver.ErrInvalidEmail),
		errors.Is(err, driver.ErrNameRequired),
		errors.Is(err, delivery.ErrOrderIDRequired),
		errors.Is(err, delivery.ErrDriverIDRequired),
		errors.Is(err, geo.ErrInvalidLatitude),
		errors.Is(err, geo.ErrInvalidLongitude):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, service.ErrInvalidCredentials):
		handler.httpError(ctx, w, http.StatusUnauthorized, err.Error(), err)
	case errors.Is(err, driver.ErrNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, "driver not found", err)
	case errors.Is(err, driver.ErrEmailTaken),
		errors.Is(err, driver.ErrAlreadyExists),
		errors.Is(err, delivery.ErrOrderAssigned):
		handler.httpError(ctx, w, http.StatusConflict, err.Error(), err)
	case errors.As(err, &pgErr):
		handler.httpError(ctx, w, http.StatusInternalServerError, "database error", err)
	default:
		handler.httpError(ctx, w, http.StatusInternalServerError, "internal error", err)
	}
}

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *DispatchHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *DispatchHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	} else if status == http.StatusUnsupportedMediaType {
		action = "unsupported_media_type"
	}
	if status >= 500 {
		handler.logger.Error(ctx, action, msg, err, nil)
	} else {
		handler.logger.Warn(ctx, action, msg, map[string]any{"status": status})
	}

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *DispatchHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
