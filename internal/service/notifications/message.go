package notifications

import (
	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/domestiq/bookingcore/internal/kafka"
)

func toMessage(n domain.Notification) kafka.NotificationMessage {
	msg := kafka.NotificationMessage{
		ID:        n.ID.String(),
		UserID:    n.UserID.String(),
		Type:      string(n.Type),
		Title:     n.Title,
		Body:      n.Body,
		CreatedAt: n.CreatedAt,
	}
	if n.ActionURL != nil {
		msg.ActionURL = *n.ActionURL
	}
	return msg
}
