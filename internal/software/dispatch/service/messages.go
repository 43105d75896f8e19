package service

import (
	"delivery-dispatch/internal/domain/message"
	"delivery-dispatch/internal/domain/user"
	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/jwt"
	"delivery-dispatch/internal/general/rooms"
)

// recipientRoom resolves where a direct message goes:
// driver -> admin or customer-<recipientId>, admin/customer -> driver-<recipientId>.
func recipientRoom(sender user.Role, recipientID string) rooms.RoomID {
	switch sender {
	case user.RoleDriver:
		if recipientID == message.AdminRecipient {
			return rooms.Admin()
		}
		return rooms.ForCustomer(recipientID)
	case user.RoleAdmin, user.RoleCustomer:
		return rooms.ForDriver(recipientID)
	}
	return rooms.RoomID{}
}

func (r *Router) sendMessage(s *jwt.Session, p contracts.SendMessage) error {
	msg, err := message.New(s.SubjectID, s.Role, p.RecipientID, p.Content)
	if err != nil {
		return badPayload(err)
	}
	msg.Timestamp = r.now()

	room := recipientRoom(s.Role, msg.RecipientID)
	if room.IsZero() {
		return ErrForbidden
	}

	r.publish(room, contracts.EventNewMessage, contracts.NewMessage{
		SenderID:    msg.SenderID,
		SenderType:  msg.SenderRole.String(),
		RecipientID: msg.RecipientID,
		Content:     msg.Content,
		Timestamp:   msg.Timestamp,
	})
	return nil
}
