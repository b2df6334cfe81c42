package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusAccepted   BookingStatus = "accepted"
	BookingStatusDeclined   BookingStatus = "declined"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusNoShow     BookingStatus = "no_show"
)

var bookingStatuses = map[BookingStatus]struct{}{
	BookingStatusPending:    {},
	BookingStatusAccepted:   {},
	BookingStatusDeclined:   {},
	BookingStatusConfirmed:  {},
	BookingStatusInProgress: {},
	BookingStatusCompleted:  {},
	BookingStatusCancelled:  {},
	BookingStatusNoShow:     {},
}

// ParseBookingStatus rejects anything outside the closed set, including case variants.
func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(s)
	if _, ok := bookingStatuses[st]; !ok {
		return "", fmt.Errorf("unknown booking status %q", s)
	}
	return st, nil
}

func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusDeclined, BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow:
		return true
	}
	return false
}

// AddressVisible reports whether a worker may see the exact address in this status.
func (s BookingStatus) AddressVisible() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusInProgress, BookingStatusCompleted:
		return true
	}
	return false
}

// Location of all bookings. Scheduled times are wall-clock times in South Africa.
var Location = mustLoadLocation("Africa/Johannesburg")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("SAST", 2*60*60)
	}
	return loc
}

type Booking struct {
	ID       uuid.UUID
	ClientID uuid.UUID
	WorkerID uuid.UUID

	ScheduledDate         time.Time
	StartTime             string // HH:MM
	EndTime               *string
	EstimatedDurationMins int

	Address     string
	Suburb      string
	City        string
	Province    string
	PostalCode  string
	LocationLat *float64
	LocationLng *float64

	TotalAmount *Cents
	Status      BookingStatus

	CancelledBy        *uuid.UUID
	CancellationReason *string
	ActualStartTime    *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ScheduledStart combines the scheduled date and start time.
func (b *Booking) ScheduledStart() (time.Time, error) {
	t, err := time.Parse("15:04", b.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse start time %q: %w", b.StartTime, err)
	}
	d := b.ScheduledDate
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, Location), nil
}

// PartyRole returns the role the user plays in this booking, or "" if they are not a party.
func (b *Booking) PartyRole(userID uuid.UUID) Role {
	switch userID {
	case b.ClientID:
		return RoleClient
	case b.WorkerID:
		return RoleWorker
	}
	return ""
}

// Counterparty returns the other party's user id.
func (b *Booking) Counterparty(role Role) uuid.UUID {
	if role == RoleWorker {
		return b.ClientID
	}
	return b.WorkerID
}
