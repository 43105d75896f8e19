package message

import (
	"errors"
	"strings"
	"time"

	"delivery-dispatch/internal/domain/user"
)

// AdminRecipient is the recipient id a driver uses to address the dispatch desk.
const AdminRecipient = "admin"

// MaxContentLength bounds a single direct message.
const MaxContentLength = 4096

// Message is a direct message relayed between participants. It is routed, not stored here.
type Message struct {
	SenderID    string    `json:"senderId"`
	SenderRole  user.Role `json:"senderType"`
	RecipientID string    `json:"recipientId"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}

var (
	ErrRecipientRequired = errors.New("recipient id is required")
	ErrEmptyContent      = errors.New("message content cannot be empty")
	ErrContentTooLong    = errors.New("message content is too long")
)

// New validates and stamps a message.
func New(senderID string, senderRole user.Role, recipientID, content string) (*Message, error) {
	if recipientID = strings.TrimSpace(recipientID); recipientID == "" {
		return nil, ErrRecipientRequired
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if len(content) > MaxContentLength {
		return nil, ErrContentTooLong
	}
	if !senderRole.Valid() {
		return nil, user.ErrInvalidRole
	}
	return &Message{
		SenderID:    senderID,
		SenderRole:  senderRole,
		RecipientID: recipientID,
		Content:     content,
		Timestamp:   time.Now().UTC(),
	}, nil
}
