package connection

import (
	"errors"
	"fmt"
	"time"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StateChange is published on every transition. Err is the cause of a drop, if any.
type StateChange struct {
	From State
	To   State
	Err  error
	At   time.Time
}

var ErrNotConnected = errors.New("not connected")

// ChannelError wraps a transport or handshake failure. The manager backs off and retries.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string { return fmt.Sprintf("channel %s: %v", e.Op, e.Err) }

func (e *ChannelError) Unwrap() error { return e.Err }

// AuthRejectedError is the server's auth_error reply.
type AuthRejectedError struct {
	Code    string
	Message string
}

func (e *AuthRejectedError) Error() string {
	return fmt.Sprintf("authentication rejected (%s): %s", e.Code, e.Message)
}
