package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"delivery-dispatch/internal/client/heartbeat"
	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/eventbus"
	"delivery-dispatch/internal/general/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// TokenSource returns a credential for the next connection attempt.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Emitter sends an event over one specific session.
type Emitter = heartbeat.Emitter

// SessionWorker runs for the lifetime of one connected session. The heartbeat publisher is one.
type SessionWorker interface {
	Run(ctx context.Context, e Emitter) error
}

type Config struct {
	URL              string
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	HandshakeTimeout time.Duration
	PongWait         time.Duration
	SendBuffer       int
	EventBuffer      int
}

func (c Config) withDefaults() Config {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
	return c
}

// Manager keeps one authenticated channel to the dispatch server alive. It reconnects with
// exponential backoff and runs its workers only while connected.
type Manager struct {
	cfg     Config
	tokens  TokenSource
	workers []SessionWorker
	logger  *logger.Logger
	dialer  *websocket.Dialer

	states *eventbus.TypedBus[StateChange]
	events chan contracts.Inbound

	mu    sync.Mutex
	state State
	cur   *session
}

func NewManager(cfg Config, tokens TokenSource, log *logger.Logger, workers ...SessionWorker) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:     cfg,
		tokens:  tokens,
		workers: workers,
		logger:  log,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		states:  eventbus.NewTyped[StateChange](16),
		events:  make(chan contracts.Inbound, cfg.EventBuffer),
	}
}

// SubscribeStates returns a channel of state transitions.
func (m *Manager) SubscribeStates() <-chan StateChange { return m.states.Subscribe() }

// Events delivers server frames received on any session. Frames are dropped when the buffer is full.
func (m *Manager) Events() <-chan contracts.Inbound { return m.events }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Send writes an event over the current session.
func (m *Manager) Send(ctx context.Context, t contracts.EventType, payload any) error {
	m.mu.Lock()
	s := m.cur
	m.mu.Unlock()
	if s == nil {
		return ErrNotConnected
	}
	return s.Send(ctx, t, payload)
}

// Run connects and reconnects until ctx is cancelled. Connection failures never end it.
func (m *Manager) Run(ctx context.Context) error {
	defer m.states.Close()
	bo := newBackOff(m.cfg)

	for {
		m.setState(Connecting, nil)
		connected, err := m.runSession(ctx)
		if ctx.Err() != nil {
			m.setState(Disconnected, nil)
			return ctx.Err()
		}
		if connected {
			bo.Reset()
		} else {
			m.setState(Disconnected, err)
		}

		delay := bo.NextBackOff()
		m.logger.Warn(ctx, "channel_retry", "Connection lost, retrying",
			map[string]any{"error": errString(err), "retry_in": delay.String()})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runSession performs one connect, handshake and serve cycle. connected reports whether the
// handshake succeeded; on that path the Disconnected state has already been published.
func (m *Manager) runSession(ctx context.Context) (connected bool, err error) {
	token, err := m.tokens.Token(ctx)
	if err != nil {
		return false, &ChannelError{Op: "token", Err: err}
	}

	ws, _, err := m.dialer.DialContext(ctx, m.cfg.URL, nil)
	if err != nil {
		return false, &ChannelError{Op: "dial", Err: err}
	}
	if err := m.handshake(ws, token); err != nil {
		_ = ws.Close()
		return false, &ChannelError{Op: "handshake", Err: err}
	}

	sessCtx, cancel := context.WithCancel(ctx)
	s := newSession(ws, m.cfg.SendBuffer, cancel)
	m.mu.Lock()
	m.cur = s
	m.mu.Unlock()
	m.setState(Connected, nil)
	m.logger.Info(ctx, "channel_connected", "Connected to dispatch server", map[string]any{"url": m.cfg.URL})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(sessCtx)
	}()
	for _, w := range m.workers {
		wg.Add(1)
		go func(w SessionWorker) {
			defer wg.Done()
			if err := w.Run(sessCtx, s); err != nil && sessCtx.Err() == nil {
				m.logger.Warn(ctx, "session_worker_failed", "Session worker stopped", map[string]any{"error": err.Error()})
			}
		}(w)
	}
	go func() {
		<-sessCtx.Done()
		_ = ws.Close()
	}()

	readErr := m.readLoop(sessCtx, ws)

	s.close()
	m.mu.Lock()
	if m.cur == s {
		m.cur = nil
	}
	m.mu.Unlock()
	wg.Wait()

	if ctx.Err() != nil {
		return true, ctx.Err()
	}
	err = &ChannelError{Op: "read", Err: readErr}
	m.setState(Disconnected, err)
	return true, err
}

func (m *Manager) handshake(ws *websocket.Conn, token string) error {
	if !strings.HasPrefix(token, "Bearer ") {
		token = "Bearer " + token
	}
	_ = ws.SetWriteDeadline(time.Now().Add(m.cfg.HandshakeTimeout))
	if err := ws.WriteJSON(map[string]string{"type": string(contracts.EventAuth), "token": token}); err != nil {
		return err
	}

	_ = ws.SetReadDeadline(time.Now().Add(m.cfg.HandshakeTimeout))
	var reply contracts.Inbound
	if err := ws.ReadJSON(&reply); err != nil {
		return err
	}
	switch reply.Type {
	case contracts.EventAuthSuccess:
		return nil
	case contracts.EventAuthError:
		var p contracts.ErrorPayload
		_ = json.Unmarshal(reply.Data, &p)
		return &AuthRejectedError{Code: p.Code, Message: p.Error}
	}
	return fmt.Errorf("unexpected handshake reply %q", reply.Type)
}

func (m *Manager) readLoop(ctx context.Context, ws *websocket.Conn) error {
	_ = ws.SetReadDeadline(time.Now().Add(m.cfg.PongWait))
	ws.SetPingHandler(func(appData string) error {
		_ = ws.SetReadDeadline(time.Now().Add(m.cfg.PongWait))
		err := ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		var in contracts.Inbound
		if err := ws.ReadJSON(&in); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		_ = ws.SetReadDeadline(time.Now().Add(m.cfg.PongWait))

		select {
		case m.events <- in:
		default:
			m.logger.Warn(ctx, "channel_event_dropped", "Event buffer full, dropping server event",
				map[string]any{"type": in.Type})
		}
	}
}

func (m *Manager) setState(to State, cause error) {
	m.mu.Lock()
	from := m.state
	if from == to {
		m.mu.Unlock()
		return
	}
	m.state = to
	m.mu.Unlock()
	m.states.Publish(StateChange{From: from, To: to, Err: cause, At: time.Now().UTC()})
}

// newBackOff doubles from InitialBackoff up to MaxBackoff without jitter and never gives up.
func newBackOff(cfg Config) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = cfg.MaxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
