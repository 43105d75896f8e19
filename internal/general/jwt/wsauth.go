package jwt

import (
	"encoding/json"
	"errors"
	"strings"

	"delivery-dispatch/internal/domain/user"
)

var ErrBadAuthMsg = errors.New("invalid auth message")

// ClientAuthMessage is what clients send first over WS:
// { "type":"auth", "token":"Bearer <jwt>" }
type ClientAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ValidateWSAuth parses the first frame of a websocket and authenticates it. Used in WebSocket auth.
func ValidateWSAuth(frame []byte, gk *Gatekeeper, allowedRoles ...user.Role) (*Session, error) {
	var msg ClientAuthMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, authErr(AuthInvalid, ErrBadAuthMsg)
	}
	if strings.ToLower(strings.TrimSpace(msg.Type)) != "auth" {
		return nil, authErr(AuthInvalid, ErrBadAuthMsg)
	}

	s, err := gk.Authenticate(msg.Token)
	if err != nil {
		return nil, err
	}

	if err := RoleAllowed(s, allowedRoles...); err != nil {
		return nil, authErr(AuthInvalid, err)
	}
	return s, nil
}
