package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"delivery-dispatch/internal/domain/user"
	"delivery-dispatch/internal/general/jwt"
	"delivery-dispatch/internal/general/logger"
	"delivery-dispatch/internal/general/memory"
	"delivery-dispatch/internal/general/rooms"
	"delivery-dispatch/internal/ports"
	"delivery-dispatch/internal/software/dispatch/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	mux *http.ServeMux
	mgr *jwt.Manager
}

func newTestServer(t *testing.T, devTokens bool) *testServer {
	t.Helper()
	store := memory.NewStore()
	mgr := jwt.NewManager("handler-secret", time.Hour)
	log := logger.Nop()
	accounts := service.NewAccounts(log, store, mgr, service.WithBcryptCost(bcrypt.MinCost))
	router := service.NewRouter(store, rooms.NewDirectory(), log, nil)

	mux := http.NewServeMux()
	NewDispatchHTTPHandler(accounts, router, log, mgr,
		WithDevTokens(devTokens),
		WithOverview(router),
		WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) })),
	).RegisterRoutes(mux)
	return &testServer{mux: mux, mgr: mgr}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	tok, _, err := s.mgr.IssueUserToken("ops", user.RoleAdmin, "Ops")
	require.NoError(t, err)
	return tok
}

func TestRegisterThenLogin(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/drivers/register",
		ports.RegisterDriverInput{Email: "ada@example.com", Password: "long-enough", Name: "Ada"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var reg ports.RegisterDriverResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	require.NotEmpty(t, reg.DriverID)

	rec = s.do(t, http.MethodPost, "/api/drivers/register",
		ports.RegisterDriverInput{Email: "ada@example.com", Password: "long-enough", Name: "Ada"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/drivers/auth", ports.AuthDriverInput{Email: "ada@example.com", Password: "long-enough"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var auth ports.AuthDriverResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auth))
	assert.NotEmpty(t, auth.Token)
	assert.Equal(t, reg.DriverID, auth.Driver.ID)

	rec = s.do(t, http.MethodPost, "/api/drivers/auth", ports.AuthDriverInput{Email: "ada@example.com", Password: "nope-nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/drivers/register", ports.RegisterDriverInput{Email: "a@b.co", Password: "123", Name: "A"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/drivers/register", bytes.NewBufferString("<xml/>"))
	req.Header.Set("Content-Type", "text/xml")
	out := httptest.NewRecorder()
	s.mux.ServeHTTP(out, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, out.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodGet, "/api/drivers/active", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	driverTok, _, err := s.mgr.IssueUserToken("D1", user.RoleDriver, "")
	require.NoError(t, err)
	rec = s.do(t, http.MethodGet, "/api/drivers/active", nil, driverTok)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/drivers/active", nil, s.adminToken(t))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAssignDeliveryEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	admin := s.adminToken(t)

	rec := s.do(t, http.MethodPost, "/api/drivers/register",
		ports.RegisterDriverInput{Email: "bob@example.com", Password: "long-enough", Name: "Bob"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var reg ports.RegisterDriverResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))

	in := ports.AssignDeliveryInput{
		OrderID:  "ord-1",
		DriverID: reg.DriverID,
		Pickup:   ports.GeoPoint{Latitude: 52.52, Longitude: 13.40},
		Drop:     ports.GeoPoint{Latitude: 52.50, Longitude: 13.45},
	}
	rec = s.do(t, http.MethodPost, "/api/deliveries", in, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	var view ports.DeliveryView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "assigned", view.Status)
	assert.Equal(t, "ord-1", view.OrderID)

	in.DriverID = "someone-else"
	rec = s.do(t, http.MethodPost, "/api/deliveries", in, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	in.OrderID, in.DriverID = "ord-2", "ghost"
	rec = s.do(t, http.MethodPost, "/api/deliveries", in, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	in.DriverID = reg.DriverID
	in.Pickup.Latitude = 120
	rec = s.do(t, http.MethodPost, "/api/deliveries", in, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDriverMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	admin := s.adminToken(t)

	rec := s.do(t, http.MethodGet, "/api/drivers/ghost/metrics", nil, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/drivers/ghost/metrics?limit=abc", nil, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDevTokensOnlyWhenEnabled(t *testing.T) {
	off := newTestServer(t, false)
	rec := off.do(t, http.MethodPost, "/tokens", TokenRequest{UserID: "u", Role: user.RoleCustomer}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	on := newTestServer(t, true)
	rec = on.do(t, http.MethodPost, "/tokens", TokenRequest{UserID: "ord-1", Role: user.RoleCustomer}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	sess, err := jwt.NewGatekeeper(on.mgr).Authenticate(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", sess.SubjectID)

	rec = on.do(t, http.MethodPost, "/tokens", TokenRequest{UserID: "x", Role: "passenger"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, false)
	rec := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOverviewEndpoint(t *testing.T) {
	s := newTestServer(t, false)

	driverTok, _, err := s.mgr.IssueUserToken("D1", user.RoleDriver, "")
	require.NoError(t, err)
	rec := s.do(t, http.MethodGet, "/api/admin/overview", nil, driverTok)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/admin/overview", nil, s.adminToken(t))
	require.Equal(t, http.StatusOK, rec.Code)
	var view ports.OverviewView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Zero(t, view.Metrics.AvailableDrivers)
	assert.Empty(t, view.Deliveries)
}
