package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/google/uuid"
)

// Emitter builds notification records. Persisting them is the caller's job, in the same
// database transaction as the change they announce.
type Emitter struct {
	baseURL string
	now     func() time.Time
}

func NewEmitter(baseURL string) *Emitter {
	return &Emitter{baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

func (e *Emitter) Emit(recipient uuid.UUID, ntype domain.NotificationType, title, body, actionPath string) *domain.Notification {
	n := &domain.Notification{
		ID:        uuid.New(),
		UserID:    recipient,
		Type:      ntype,
		Title:     title,
		Body:      body,
		CreatedAt: e.now().UTC(),
	}
	if actionPath != "" {
		url := e.baseURL + actionPath
		n.ActionURL = &url
	}
	return n
}

// ForTransition returns the notification announcing b's move into status to.
// recipient is whoever did not trigger it.
func (e *Emitter) ForTransition(b *domain.Booking, to domain.BookingStatus, recipient uuid.UUID) *domain.Notification {
	when := b.ScheduledDate.Format("Mon 2 Jan") + " at " + b.StartTime
	path := "/bookings/" + b.ID.String()

	var (
		ntype       domain.NotificationType
		title, body string
	)
	switch to {
	case domain.BookingStatusPending:
		ntype, title = domain.NotifBookingRequested, "New Booking Request"
		body = fmt.Sprintf("You have a new booking request for %s in %s.", when, b.Suburb)
	case domain.BookingStatusAccepted:
		ntype, title = domain.NotifBookingAccepted, "Booking Accepted"
		body = fmt.Sprintf("Your booking for %s was accepted. Complete payment to confirm it.", when)
	case domain.BookingStatusDeclined:
		ntype, title = domain.NotifBookingDeclined, "Booking Declined"
		body = fmt.Sprintf("Your booking request for %s was declined.", when)
	case domain.BookingStatusConfirmed:
		ntype, title = domain.NotifBookingConfirmed, "Booking Confirmed"
		body = fmt.Sprintf("The booking for %s is confirmed. The full address is now available.", when)
	case domain.BookingStatusInProgress:
		ntype, title = domain.NotifBookingStarted, "Job Started"
		body = fmt.Sprintf("Your worker has started the job booked for %s.", when)
	case domain.BookingStatusCompleted:
		ntype, title = domain.NotifBookingCompleted, "Job Completed - please review"
		body = fmt.Sprintf("The job booked for %s is complete. Please leave a review.", when)
	case domain.BookingStatusCancelled:
		ntype, title = domain.NotifBookingCancelled, "Booking Cancelled"
		body = fmt.Sprintf("The booking for %s was cancelled.", when)
		if b.CancellationReason != nil && *b.CancellationReason != "" {
			body += " Reason: " + *b.CancellationReason
		}
	case domain.BookingStatusNoShow:
		ntype, title = domain.NotifBookingNoShow, "Booking Marked as No-Show"
		body = fmt.Sprintf("The booking for %s was marked as a no-show.", when)
	default:
		return nil
	}
	return e.Emit(recipient, ntype, title, body, path)
}

func (e *Emitter) PaymentReceived(b *domain.Booking, t *domain.Transaction) *domain.Notification {
	return e.Emit(b.ClientID, domain.NotifPaymentReceived, "Payment Received",
		fmt.Sprintf("We received your payment of %s.", t.TotalAmount), "/bookings/"+b.ID.String())
}

func (e *Emitter) PaymentFailed(b *domain.Booking, t *domain.Transaction) *domain.Notification {
	return e.Emit(b.ClientID, domain.NotifPaymentFailed, "Payment Failed",
		fmt.Sprintf("Your payment of %s did not go through. Please try again.", t.TotalAmount), "/bookings/"+b.ID.String())
}
