package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking, notification *domain.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]domain.Booking, error)
	ApplyTransition(ctx context.Context, w TransitionWrite) (*domain.Booking, error)
}

type BookingFilter struct {
	ClientID *uuid.UUID
	WorkerID *uuid.UUID
	Statuses []domain.BookingStatus
	Limit    int
	Offset   int
}

// TransitionWrite is everything one status change persists. All parts commit together or not at all.
type TransitionWrite struct {
	// Booking carries the post-transition values; its status is applied only if the stored
	// status still equals From.
	Booking        *domain.Booking
	From           domain.BookingStatus
	NewTransaction *domain.Transaction
	Settle         *SettleWrite
	Notification   *domain.Notification
}

// SettleWrite records the refund split on a paid transaction.
type SettleWrite struct {
	TransactionID uuid.UUID
	Status        domain.TransactionStatus
	domain.Settlement
}

type PGBookingRepository struct {
	db DB
}

func NewBookingRepository(db DB) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, client_id, worker_id, scheduled_date, start_time, end_time, estimated_duration_mins,
	address, suburb, city, province, postal_code, location_lat, location_lng, total_amount, status,
	cancelled_by, cancellation_reason, actual_start_time, completed_at, created_at, updated_at`

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking, notification *domain.Notification) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.StorageError("begin create booking", err)
	}
	defer tx.Rollback(ctx)

	booking.Status = domain.BookingStatusPending
	if err := tx.QueryRow(ctx, `INSERT INTO bookings (id, client_id, worker_id, scheduled_date, start_time, end_time,
		estimated_duration_mins, address, suburb, city, province, postal_code, location_lat, location_lng, total_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at`,
		booking.ID, booking.ClientID, booking.WorkerID, booking.ScheduledDate, booking.StartTime, booking.EndTime,
		booking.EstimatedDurationMins, booking.Address, booking.Suburb, booking.City, booking.Province, booking.PostalCode,
		booking.LocationLat, booking.LocationLng, centsPtr(booking.TotalAmount), string(booking.Status)).
		Scan(&booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return domain.StorageError("insert booking", err)
	}

	if notification != nil {
		if err := insertNotification(ctx, tx, notification); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.StorageError("commit create booking", err)
	}
	return nil
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
		}
		return nil, domain.StorageError("get booking", err)
	}
	return b, nil
}

func (r *PGBookingRepository) List(ctx context.Context, filter BookingFilter) ([]domain.Booking, error) {
	var (
		where []string
		args  []any
	)
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		where = append(where, fmt.Sprintf("client_id=$%d", len(args)))
	}
	if filter.WorkerID != nil {
		args = append(args, *filter.WorkerID)
		where = append(where, fmt.Sprintf("worker_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY scheduled_date DESC, start_time DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageError("list bookings", err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, domain.StorageError("scan booking", err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("list bookings", err)
	}
	return bookings, nil
}

// ApplyTransition compare-and-swaps the status column and writes the side effects in one transaction.
// total_amount is only ever filled in, never overwritten.
func (r *PGBookingRepository) ApplyTransition(ctx context.Context, w TransitionWrite) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, domain.StorageError("begin transition", err)
	}
	defer tx.Rollback(ctx)

	b := w.Booking
	row := tx.QueryRow(ctx, `UPDATE bookings SET
			status=$1,
			total_amount=COALESCE(total_amount, $2),
			cancelled_by=$3,
			cancellation_reason=$4,
			actual_start_time=$5,
			completed_at=$6,
			updated_at=now()
		WHERE id=$7 AND status=$8
		RETURNING `+bookingColumns,
		string(b.Status), centsPtr(b.TotalAmount), b.CancelledBy, b.CancellationReason, b.ActualStartTime, b.CompletedAt,
		b.ID, string(w.From))
	updated, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("booking %s no longer %s: %w", b.ID, w.From, domain.ErrConcurrentModification)
		}
		return nil, domain.StorageError("update booking status", err)
	}

	if w.NewTransaction != nil {
		if err := insertTransaction(ctx, tx, w.NewTransaction); err != nil {
			return nil, err
		}
	}
	if w.Settle != nil {
		if _, err := tx.Exec(ctx, `UPDATE transactions SET status=$1, refund_amount=$2, worker_payout=$3, updated_at=now()
			WHERE id=$4`, string(w.Settle.Status), int64(w.Settle.RefundAmount), int64(w.Settle.WorkerPayout), w.Settle.TransactionID); err != nil {
			return nil, domain.StorageError("settle transaction", err)
		}
	}
	if w.Notification != nil {
		if err := insertNotification(ctx, tx, w.Notification); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.StorageError("commit transition", err)
	}
	return updated, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b      domain.Booking
		total  *int64
		status string
	)
	if err := row.Scan(&b.ID, &b.ClientID, &b.WorkerID, &b.ScheduledDate, &b.StartTime, &b.EndTime, &b.EstimatedDurationMins,
		&b.Address, &b.Suburb, &b.City, &b.Province, &b.PostalCode, &b.LocationLat, &b.LocationLng, &total, &status,
		&b.CancelledBy, &b.CancellationReason, &b.ActualStartTime, &b.CompletedAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	st, err := domain.ParseBookingStatus(status)
	if err != nil {
		return nil, err
	}
	b.Status = st
	if total != nil {
		c := domain.Cents(*total)
		b.TotalAmount = &c
	}
	return &b, nil
}

func centsPtr(c *domain.Cents) *int64 {
	if c == nil {
		return nil
	}
	v := int64(*c)
	return &v
}

var _ BookingRepository = (*PGBookingRepository)(nil)
