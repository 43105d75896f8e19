package connection

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"delivery-dispatch/internal/general/contracts"

	"github.com/gorilla/websocket"
)

// session is one authenticated socket. It is the Emitter handed to session workers, so a
// worker can never write into a later session.
type session struct {
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
}

func newSession(ws *websocket.Conn, buffer int, cancel context.CancelFunc) *session {
	return &session{ws: ws, send: make(chan []byte, buffer), done: make(chan struct{}), cancel: cancel}
}

func (s *session) Send(ctx context.Context, t contracts.EventType, payload any) error {
	frame, err := json.Marshal(contracts.NewOutbound(t, payload))
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrNotConnected
	default:
	}
	select {
	case s.send <- frame:
		return nil
	case <-s.done:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = s.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
			return
		case frame := <-s.send:
			_ = s.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := s.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.cancel()
				return
			}
		}
	}
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
	})
}
