package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingColumnNames = []string{
	"id", "client_id", "worker_id", "scheduled_date", "start_time", "end_time", "estimated_duration_mins",
	"address", "suburb", "city", "province", "postal_code", "location_lat", "location_lng", "total_amount", "status",
	"cancelled_by", "cancellation_reason", "actual_start_time", "completed_at", "created_at", "updated_at",
}

func testBooking(status domain.BookingStatus) *domain.Booking {
	amount := domain.Cents(15000)
	return &domain.Booking{
		ID:                    uuid.New(),
		ClientID:              uuid.New(),
		WorkerID:              uuid.New(),
		ScheduledDate:         time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
		StartTime:             "09:00",
		EstimatedDurationMins: 240,
		Address:               "12 Jacaranda Ave",
		Suburb:                "Melville",
		City:                  "Johannesburg",
		Province:              "Gauteng",
		PostalCode:            "2092",
		TotalAmount:           &amount,
		Status:                status,
	}
}

func bookingRow(b *domain.Booking) []any {
	now := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	var total any
	if b.TotalAmount != nil {
		v := int64(*b.TotalAmount)
		total = &v
	}
	return []any{
		b.ID, b.ClientID, b.WorkerID, b.ScheduledDate, b.StartTime, nil, b.EstimatedDurationMins,
		b.Address, b.Suburb, b.City, b.Province, b.PostalCode, nil, nil, total, string(b.Status),
		nil, nil, nil, nil, now, now,
	}
}

func TestNewBookingRepository(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	assert.NotNil(t, NewBookingRepository(mock))
}

func TestApplyTransition_CommitsStatusTransactionAndNotification(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBookingRepository(mock)
	ctx := context.Background()

	next := testBooking(domain.BookingStatusAccepted)
	txn := &domain.Transaction{ID: uuid.New(), BookingID: next.ID, WorkerAmount: 15000, PlatformFee: 1800, TotalAmount: 16800,
		PlatformFeeBasisPoints: 1200, Status: domain.TransactionStatusPending}
	note := &domain.Notification{ID: uuid.New(), UserID: next.ClientID, Type: domain.NotifBookingAccepted, Title: "Booking Accepted"}

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE bookings SET").
		WithArgs("accepted", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), next.ID, "pending").
		WillReturnRows(pgxmock.NewRows(bookingColumnNames).AddRow(bookingRow(next)...))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, next.ID, int64(15000), int64(1800), int64(16800), int64(1200), "pending", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(note.ID, next.ClientID, "booking_accepted", "Booking Accepted", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	updated, err := repo.ApplyTransition(ctx, TransitionWrite{
		Booking:        next,
		From:           domain.BookingStatusPending,
		NewTransaction: txn,
		Notification:   note,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusAccepted, updated.Status)
	require.NotNil(t, updated.TotalAmount)
	assert.Equal(t, domain.Cents(15000), *updated.TotalAmount)
	assert.Nil(t, updated.EndTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransition_StatusMovedReturnsConcurrentModification(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBookingRepository(mock)
	next := testBooking(domain.BookingStatusDeclined)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE bookings SET").
		WithArgs("declined", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), next.ID, "pending").
		WillReturnRows(pgxmock.NewRows(bookingColumnNames))
	mock.ExpectRollback()

	updated, err := repo.ApplyTransition(context.Background(), TransitionWrite{
		Booking:      next,
		From:         domain.BookingStatusPending,
		Notification: &domain.Notification{ID: uuid.New(), UserID: next.ClientID, Type: domain.NotifBookingDeclined},
	})

	assert.Nil(t, updated)
	assert.True(t, errors.Is(err, domain.ErrConcurrentModification))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransition_NotificationFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBookingRepository(mock)
	next := testBooking(domain.BookingStatusDeclined)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE bookings SET").
		WithArgs("declined", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), next.ID, "pending").
		WillReturnRows(pgxmock.NewRows(bookingColumnNames).AddRow(bookingRow(next)...))
	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err = repo.ApplyTransition(context.Background(), TransitionWrite{
		Booking:      next,
		From:         domain.BookingStatusPending,
		Notification: &domain.Notification{ID: uuid.New(), UserID: next.ClientID, Type: domain.NotifBookingDeclined},
	})

	assert.True(t, errors.Is(err, domain.ErrStorageUnavailable))
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT .+ FROM bookings WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(bookingColumnNames))

	b, err := NewBookingRepository(mock).GetByID(context.Background(), id)
	assert.Nil(t, b)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetByID_RejectsUnknownStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := testBooking("ACCEPTED")
	mock.ExpectQuery("SELECT .+ FROM bookings WHERE id").
		WithArgs(b.ID).
		WillReturnRows(pgxmock.NewRows(bookingColumnNames).AddRow(bookingRow(b)...))

	got, err := NewBookingRepository(mock).GetByID(context.Background(), b.ID)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, domain.ErrStorageUnavailable))
}

func TestCreate_InsertsBookingAndNotification(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	b := testBooking("")
	note := &domain.Notification{ID: uuid.New(), UserID: b.WorkerID, Type: domain.NotifBookingRequested, Title: "New Booking Request"}
	created := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(b.ID, b.ClientID, b.WorkerID, b.ScheduledDate, b.StartTime, pgxmock.AnyArg(), b.EstimatedDurationMins,
			b.Address, b.Suburb, b.City, b.Province, b.PostalCode, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "pending").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))
	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(note.ID, b.WorkerID, "booking_requested", "New Booking Request", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = NewBookingRepository(mock).Create(context.Background(), b, note)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPending, b.Status)
	assert.Equal(t, created, b.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
