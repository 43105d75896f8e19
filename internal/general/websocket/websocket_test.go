package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"delivery-dispatch/internal/domain/user"
	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/jwt"
	"delivery-dispatch/internal/general/logger"
	"delivery-dispatch/internal/general/rooms"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRouter struct {
	dir *rooms.Directory

	mu           sync.Mutex
	members      map[string]rooms.Member
	connected    []string
	disconnected []string
	handled      []contracts.EventType
	disconnectCh chan string
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{dir: rooms.NewDirectory(), members: map[string]rooms.Member{}, disconnectCh: make(chan string, 8)}
}

func (f *fakeRouter) Connect(_ context.Context, m rooms.Member, s *jwt.Session) (rooms.RoomID, error) {
	room, _ := rooms.ForSession(s)
	f.dir.Join(m, room)
	f.mu.Lock()
	f.members[s.SubjectID] = m
	f.connected = append(f.connected, s.SubjectID)
	f.mu.Unlock()
	return room, nil
}

func (f *fakeRouter) Disconnect(ctx context.Context, m rooms.Member, s *jwt.Session) error {
	f.dir.LeaveAll(m.ID())
	f.mu.Lock()
	f.disconnected = append(f.disconnected, s.SubjectID)
	f.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.disconnectCh <- s.SubjectID
	return nil
}

func (f *fakeRouter) Handle(_ context.Context, s *jwt.Session, in contracts.Inbound) (*contracts.Outbound, error) {
	f.mu.Lock()
	f.handled = append(f.handled, in.Type)
	f.mu.Unlock()
	if in.Type == "ping_me" {
		ack := contracts.NewAck(in.Type)
		return &ack, nil
	}
	return nil, nil
}

func (f *fakeRouter) handledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handled)
}

func (f *fakeRouter) member(subject string) rooms.Member {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[subject]
}

type harness struct {
	srv    *httptest.Server
	router *fakeRouter
	mgr    *jwt.Manager
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	mgr := jwt.NewManager("ws-test-secret", time.Hour)
	router := newFakeRouter()
	ws := NewWebSocket(logger.Nop(), jwt.NewGatekeeper(mgr), router, nil, cfg)
	srv := httptest.NewServer(ws)
	t.Cleanup(srv.Close)
	return &harness{srv: srv, router: router, mgr: mgr}
}

func (h *harness) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func (h *harness) token(t *testing.T, subject string, role user.Role) string {
	t.Helper()
	tok, _, err := h.mgr.IssueUserToken(subject, role, "")
	require.NoError(t, err)
	return tok
}

type frame struct {
	Type contracts.EventType `json:"type"`
	Data json.RawMessage     `json:"data"`
}

func readFrame(t *testing.T, c *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, c.ReadJSON(&f))
	return f
}

func TestFirstFrameAuthJoinsRoom(t *testing.T) {
	h := newHarness(t, Config{})
	c := h.dial(t, nil)

	require.NoError(t, c.WriteJSON(map[string]string{"type": "auth", "token": "Bearer " + h.token(t, "D1", user.RoleDriver)}))
	f := readFrame(t, c)
	require.Equal(t, contracts.EventAuthSuccess, f.Type)

	var ok contracts.AuthSuccess
	require.NoError(t, json.Unmarshal(f.Data, &ok))
	assert.Equal(t, "D1", ok.SubjectID)
	assert.Equal(t, "driver", ok.Role)
	assert.Equal(t, []string{"driver-D1"}, ok.Rooms)

	require.Eventually(t, func() bool {
		return len(h.router.dir.Members(rooms.ForDriver("D1"))) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHeaderCredentialSkipsAuthFrame(t *testing.T) {
	h := newHarness(t, Config{})
	header := http.Header{}
	header.Set("Authorization", "Bearer "+h.token(t, "ops", user.RoleAdmin))
	c := h.dial(t, header)

	f := readFrame(t, c)
	assert.Equal(t, contracts.EventAuthSuccess, f.Type)
}

func TestBadTokenIsRejectedAndNeverJoins(t *testing.T) {
	h := newHarness(t, Config{})
	c := h.dial(t, nil)

	require.NoError(t, c.WriteJSON(map[string]string{"type": "auth", "token": "Bearer garbage"}))
	f := readFrame(t, c)
	require.Equal(t, contracts.EventAuthError, f.Type)

	var p contracts.ErrorPayload
	require.NoError(t, json.Unmarshal(f.Data, &p))
	assert.Equal(t, "auth_invalid", p.Code)

	_, _, err := c.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, h.router.dir.Size())
	assert.Empty(t, h.router.connected)
}

func TestAuthTimeoutClosesConnection(t *testing.T) {
	h := newHarness(t, Config{AuthTimeout: 50 * time.Millisecond})
	c := h.dial(t, nil)

	f := readFrame(t, c)
	require.Equal(t, contracts.EventAuthError, f.Type)
	var p contracts.ErrorPayload
	require.NoError(t, json.Unmarshal(f.Data, &p))
	assert.Equal(t, "auth_missing", p.Code)
	assert.Equal(t, 0, h.router.dir.Size())
}

func TestFramesReachRouterAndRepliesComeBack(t *testing.T) {
	h := newHarness(t, Config{})
	c := h.dial(t, nil)
	require.NoError(t, c.WriteJSON(map[string]string{"type": "auth", "token": h.token(t, "ord-1", user.RoleCustomer)}))
	require.Equal(t, contracts.EventAuthSuccess, readFrame(t, c).Type)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f := readFrame(t, c)
	assert.Equal(t, contracts.EventError, f.Type)

	require.NoError(t, c.WriteJSON(map[string]any{"type": "ping_me", "data": map[string]any{}}))
	f = readFrame(t, c)
	assert.Equal(t, contracts.EventAck, f.Type)
}

func TestRoomPublishIsDelivered(t *testing.T) {
	h := newHarness(t, Config{})
	c := h.dial(t, nil)
	require.NoError(t, c.WriteJSON(map[string]string{"type": "auth", "token": h.token(t, "ops", user.RoleAdmin)}))
	require.Equal(t, contracts.EventAuthSuccess, readFrame(t, c).Type)

	require.Eventually(t, func() bool {
		return h.router.dir.Publish(rooms.Admin(), contracts.NewOutbound(contracts.EventDriverStatusChanged,
			contracts.DriverStatusChanged{DriverID: "D1", Status: "available"})) == 1
	}, time.Second, 10*time.Millisecond)

	f := readFrame(t, c)
	assert.Equal(t, contracts.EventDriverStatusChanged, f.Type)
}

func TestClientCloseDisconnectsWithLiveContext(t *testing.T) {
	h := newHarness(t, Config{})
	c := h.dial(t, nil)
	require.NoError(t, c.WriteJSON(map[string]string{"type": "auth", "token": h.token(t, "D7", user.RoleDriver)}))
	require.Equal(t, contracts.EventAuthSuccess, readFrame(t, c).Type)

	require.NoError(t, c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = c.Close()

	select {
	case id := <-h.router.disconnectCh:
		assert.Equal(t, "D7", id)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not observed")
	}
	assert.Equal(t, 0, h.router.dir.Size())
}

func TestExpiredSessionIsClosed(t *testing.T) {
	h := newHarness(t, Config{})
	short := jwt.NewManager("ws-test-secret", 1500*time.Millisecond)
	tok, _, err := short.IssueUserToken("D9", user.RoleDriver, "")
	require.NoError(t, err)

	c := h.dial(t, nil)
	require.NoError(t, c.WriteJSON(map[string]string{"type": "auth", "token": tok}))
	require.Equal(t, contracts.EventAuthSuccess, readFrame(t, c).Type)

	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = c.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CloseSessionExpired, ce.Code)
}

func TestConnSendNeverBlocks(t *testing.T) {
	c := newConn("x", nil, 1)
	assert.True(t, c.Send(contracts.NewAck("a")))
	assert.False(t, c.Send(contracts.NewAck("b")))
	c.shutdown()
	<-c.send
	assert.False(t, c.Send(contracts.NewAck("c")))
	c.shutdown()
}

func TestHeartbeatFramesStampConnection(t *testing.T) {
	h := newHarness(t, Config{})
	header := http.Header{}
	header.Set("Authorization", "Bearer "+h.token(t, "D1", user.RoleDriver))
	c := h.dial(t, header)
	require.Equal(t, contracts.EventAuthSuccess, readFrame(t, c).Type)

	var sc *conn
	require.Eventually(t, func() bool {
		m, ok := h.router.member("D1").(*conn)
		sc = m
		return ok
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, c.WriteJSON(map[string]any{"type": "sendMessage", "data": map[string]string{"room": "admin", "message": "hi"}}))
	require.Eventually(t, func() bool { return h.router.handledCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.True(t, sc.LastHeartbeatAt().IsZero())

	before := time.Now()
	require.NoError(t, c.WriteJSON(map[string]any{"type": "updateLocation", "data": map[string]float64{"latitude": 52.5, "longitude": 13.4}}))
	require.Eventually(t, func() bool { return !sc.LastHeartbeatAt().IsZero() }, time.Second, 10*time.Millisecond)
	assert.False(t, sc.LastHeartbeatAt().Before(before.Add(-time.Second)))
}
