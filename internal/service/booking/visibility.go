package booking

import (
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/google/uuid"
)

// BookingView is the rendering of a booking for one actor.
type BookingView struct {
	ID                    uuid.UUID            `json:"id"`
	ClientID              uuid.UUID            `json:"client_id"`
	WorkerID              uuid.UUID            `json:"worker_id"`
	Status                domain.BookingStatus `json:"status"`
	ScheduledDate         string               `json:"scheduled_date"`
	StartTime             string               `json:"start_time"`
	EndTime               *string              `json:"end_time,omitempty"`
	EstimatedDurationMins int                  `json:"estimated_duration_mins"`

	Address       *string  `json:"address,omitempty"`
	PostalCode    *string  `json:"postal_code,omitempty"`
	LocationLat   *float64 `json:"location_lat,omitempty"`
	LocationLng   *float64 `json:"location_lng,omitempty"`
	Suburb        string   `json:"suburb"`
	City          string   `json:"city"`
	Province      string   `json:"province"`
	AddressHidden bool     `json:"address_hidden"`

	TotalAmount        *int64     `json:"total_amount,omitempty"`
	CancelledBy        *uuid.UUID `json:"cancelled_by,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	ActualStartTime    *time.Time `json:"actual_start_time,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	// NextStatuses are the moves available to the viewer right now.
	NextStatuses []domain.BookingStatus `json:"next_statuses"`
}

// ViewFor projects b for actor. A worker sees the street address, postal code and
// coordinates only once the booking is confirmed.
func ViewFor(actor domain.Actor, b *domain.Booking) BookingView {
	v := BookingView{
		ID:                    b.ID,
		ClientID:              b.ClientID,
		WorkerID:              b.WorkerID,
		Status:                b.Status,
		ScheduledDate:         b.ScheduledDate.Format(time.DateOnly),
		StartTime:             b.StartTime,
		EndTime:               b.EndTime,
		EstimatedDurationMins: b.EstimatedDurationMins,
		Suburb:                b.Suburb,
		City:                  b.City,
		Province:              b.Province,
		CancelledBy:           b.CancelledBy,
		CancellationReason:    b.CancellationReason,
		ActualStartTime:       b.ActualStartTime,
		CompletedAt:           b.CompletedAt,
		CreatedAt:             b.CreatedAt,
		UpdatedAt:             b.UpdatedAt,
		NextStatuses:          NextStatuses(b.Status, actor.Role),
	}
	if v.NextStatuses == nil {
		v.NextStatuses = []domain.BookingStatus{}
	}
	if b.TotalAmount != nil {
		amount := int64(*b.TotalAmount)
		v.TotalAmount = &amount
	}

	if actor.Role == domain.RoleWorker && !b.Status.AddressVisible() {
		v.AddressHidden = true
		return v
	}
	address, postal := b.Address, b.PostalCode
	v.Address = &address
	v.PostalCode = &postal
	v.LocationLat = b.LocationLat
	v.LocationLng = b.LocationLng
	return v
}
