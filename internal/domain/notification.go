package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotifBookingRequested NotificationType = "booking_requested"
	NotifBookingAccepted  NotificationType = "booking_accepted"
	NotifBookingDeclined  NotificationType = "booking_declined"
	NotifBookingConfirmed NotificationType = "booking_confirmed"
	NotifBookingStarted   NotificationType = "booking_started"
	NotifBookingCompleted NotificationType = "booking_completed"
	NotifBookingCancelled NotificationType = "booking_cancelled"
	NotifBookingNoShow    NotificationType = "booking_no_show"
	NotifPaymentReceived  NotificationType = "payment_received"
	NotifPaymentFailed    NotificationType = "payment_failed"
)

type Notification struct {
	ID           uuid.UUID        `json:"id"`
	UserID       uuid.UUID        `json:"user_id"`
	Type         NotificationType `json:"type"`
	Title        string           `json:"title"`
	Body         string           `json:"body"`
	ActionURL    *string          `json:"action_url,omitempty"`
	IsRead       bool             `json:"is_read"`
	CreatedAt    time.Time        `json:"created_at"`
	DispatchedAt *time.Time       `json:"-"`
}
