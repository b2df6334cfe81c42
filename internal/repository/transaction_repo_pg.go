package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type TransactionRepository interface {
	GetActiveByBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Transaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, reference string) error
	// MarkPaid and MarkFailed return false when the transaction had already left pending/processing.
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, notification *domain.Notification) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, notification *domain.Notification) (bool, error)
	// Regenerate inserts next as the booking's active transaction in place of a failed one.
	Regenerate(ctx context.Context, failedID uuid.UUID, next *domain.Transaction) error
	// Settle records a split on a paid, not yet settled transaction. False when there was none.
	Settle(ctx context.Context, id uuid.UUID, status domain.TransactionStatus, split domain.Settlement) (bool, error)
	ListPendingRefunds(ctx context.Context, limit int) ([]domain.Transaction, error)
	SetRefundReference(ctx context.Context, id uuid.UUID, reference string) error
	ListSettledForWorker(ctx context.Context, workerID uuid.UUID, from, to time.Time) ([]SettledLine, error)
}

// SettledLine is a paid transaction joined with the booking it settles.
type SettledLine struct {
	BookingID     uuid.UUID
	ScheduledDate time.Time
	Suburb        string
	City          string
	BookingStatus domain.BookingStatus
	Transaction   domain.Transaction
}

type PGTransactionRepository struct {
	db DB
}

func NewTransactionRepository(db DB) TransactionRepository {
	return &PGTransactionRepository{db: db}
}

const transactionColumns = `id, booking_id, worker_amount, platform_fee, total_amount, platform_fee_bps, status,
	paystack_reference, paid_at, refund_amount, worker_payout, refund_reference, created_at, updated_at`

func (r *PGTransactionRepository) GetActiveByBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE booking_id=$1 ORDER BY created_at DESC LIMIT 1`, bookingID)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction for booking %s: %w", bookingID, domain.ErrNotFound)
		}
		return nil, domain.StorageError("get transaction", err)
	}
	return t, nil
}

func (r *PGTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id=$1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
		}
		return nil, domain.StorageError("get transaction", err)
	}
	return t, nil
}

func (r *PGTransactionRepository) MarkProcessing(ctx context.Context, id uuid.UUID, reference string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE transactions SET status=$1, paystack_reference=$2, updated_at=now()
		WHERE id=$3 AND status IN ('pending', 'processing')`, string(domain.TransactionStatusProcessing), reference, id)
	if err != nil {
		return domain.StorageError("mark transaction processing", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s is not awaiting payment: %w", id, domain.ErrConcurrentModification)
	}
	return nil
}

func (r *PGTransactionRepository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, notification *domain.Notification) (bool, error) {
	return r.finish(ctx, id, domain.TransactionStatusCompleted, &paidAt, notification)
}

func (r *PGTransactionRepository) MarkFailed(ctx context.Context, id uuid.UUID, notification *domain.Notification) (bool, error) {
	return r.finish(ctx, id, domain.TransactionStatusFailed, nil, notification)
}

func (r *PGTransactionRepository) finish(ctx context.Context, id uuid.UUID, status domain.TransactionStatus, paidAt *time.Time, notification *domain.Notification) (bool, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, domain.StorageError("begin finish transaction", err)
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `UPDATE transactions SET status=$1, paid_at=COALESCE($2, paid_at), updated_at=now()
		WHERE id=$3 AND status IN ('pending', 'processing')`, string(status), paidAt, id)
	if err != nil {
		return false, domain.StorageError("finish transaction", err)
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}
	if notification != nil {
		if err := insertNotification(ctx, tx, notification); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, domain.StorageError("commit finish transaction", err)
	}
	return true, nil
}

// Regenerate keeps the failed row as history. It refuses when that row is no longer failed or
// no longer the newest for its booking, so two concurrent retries cannot both insert.
func (r *PGTransactionRepository) Regenerate(ctx context.Context, failedID uuid.UUID, next *domain.Transaction) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.StorageError("begin regenerate transaction", err)
	}
	defer tx.Rollback(ctx)

	var (
		status    string
		bookingID uuid.UUID
	)
	err = tx.QueryRow(ctx, `SELECT status, booking_id FROM transactions WHERE id=$1 FOR UPDATE`, failedID).Scan(&status, &bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("transaction %s: %w", failedID, domain.ErrNotFound)
		}
		return domain.StorageError("lock failed transaction", err)
	}
	if status != string(domain.TransactionStatusFailed) || bookingID != next.BookingID {
		return fmt.Errorf("transaction %s is %s: %w", failedID, status, domain.ErrConcurrentModification)
	}

	var newest uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM transactions WHERE booking_id=$1 ORDER BY created_at DESC LIMIT 1`, bookingID).Scan(&newest); err != nil {
		return domain.StorageError("get newest transaction", err)
	}
	if newest != failedID {
		return fmt.Errorf("booking %s already has transaction %s: %w", bookingID, newest, domain.ErrConcurrentModification)
	}

	if err := insertTransaction(ctx, tx, next); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.StorageError("commit regenerate transaction", err)
	}
	return nil
}

func (r *PGTransactionRepository) Settle(ctx context.Context, id uuid.UUID, status domain.TransactionStatus, split domain.Settlement) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE transactions SET status=$1, refund_amount=$2, worker_payout=$3, updated_at=now()
		WHERE id=$4 AND status=$5 AND refund_amount=0 AND worker_payout=0`, string(status), int64(split.RefundAmount), int64(split.WorkerPayout), id,
		string(domain.TransactionStatusCompleted))
	if err != nil {
		return false, domain.StorageError("settle transaction", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGTransactionRepository) ListPendingRefunds(ctx context.Context, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE status=$1 AND refund_amount > 0 AND refund_reference IS NULL AND paystack_reference IS NOT NULL
		ORDER BY updated_at LIMIT $2`, string(domain.TransactionStatusRefunded), limit)
	if err != nil {
		return nil, domain.StorageError("list pending refunds", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, domain.StorageError("scan transaction", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("list pending refunds", err)
	}
	return out, nil
}

func (r *PGTransactionRepository) SetRefundReference(ctx context.Context, id uuid.UUID, reference string) error {
	_, err := r.db.Exec(ctx, `UPDATE transactions SET refund_reference=$1, updated_at=now() WHERE id=$2 AND refund_reference IS NULL`, reference, id)
	if err != nil {
		return domain.StorageError("set refund reference", err)
	}
	return nil
}

// ListSettledForWorker returns paid transactions for bookings that ended in [from, to).
func (r *PGTransactionRepository) ListSettledForWorker(ctx context.Context, workerID uuid.UUID, from, to time.Time) ([]SettledLine, error) {
	rows, err := r.db.Query(ctx, `SELECT b.id, b.scheduled_date, b.suburb, b.city, b.status,
			t.id, t.booking_id, t.worker_amount, t.platform_fee, t.total_amount, t.platform_fee_bps, t.status,
			t.paystack_reference, t.paid_at, t.refund_amount, t.worker_payout, t.refund_reference, t.created_at, t.updated_at
		FROM bookings b
		JOIN LATERAL (
			SELECT * FROM transactions WHERE booking_id = b.id ORDER BY created_at DESC LIMIT 1
		) t ON true
		WHERE b.worker_id=$1 AND b.scheduled_date >= $2 AND b.scheduled_date < $3
			AND b.status IN ('completed', 'cancelled', 'no_show')
			AND t.paid_at IS NOT NULL
		ORDER BY b.scheduled_date`, workerID, from, to)
	if err != nil {
		return nil, domain.StorageError("list settled transactions", err)
	}
	defer rows.Close()

	var out []SettledLine
	for rows.Next() {
		var (
			line   SettledLine
			status string
		)
		t, err := scanTransactionWith(rows, &line.BookingID, &line.ScheduledDate, &line.Suburb, &line.City, &status)
		if err != nil {
			return nil, domain.StorageError("scan settled transaction", err)
		}
		if line.BookingStatus, err = domain.ParseBookingStatus(status); err != nil {
			return nil, domain.StorageError("scan settled transaction", err)
		}
		line.Transaction = *t
		out = append(out, line)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("list settled transactions", err)
	}
	return out, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, booking_id, worker_amount, platform_fee, total_amount,
			platform_fee_bps, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.BookingID, int64(t.WorkerAmount), int64(t.PlatformFee), int64(t.TotalAmount),
		t.PlatformFeeBasisPoints, string(t.Status), t.CreatedAt, t.UpdatedAt); err != nil {
		return domain.StorageError("insert transaction", err)
	}
	return nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	return scanTransactionWith(row)
}

// scanTransactionWith scans leading columns into prefix before the transaction columns.
func scanTransactionWith(row pgx.Row, prefix ...any) (*domain.Transaction, error) {
	var (
		t                                  domain.Transaction
		worker, fee, total, refund, payout int64
		status                             string
	)
	dest := append(prefix, &t.ID, &t.BookingID, &worker, &fee, &total, &t.PlatformFeeBasisPoints, &status,
		&t.PaystackReference, &t.PaidAt, &refund, &payout, &t.RefundReference, &t.CreatedAt, &t.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	st, err := domain.ParseTransactionStatus(status)
	if err != nil {
		return nil, err
	}
	t.Status = st
	t.WorkerAmount = domain.Cents(worker)
	t.PlatformFee = domain.Cents(fee)
	t.TotalAmount = domain.Cents(total)
	t.RefundAmount = domain.Cents(refund)
	t.WorkerPayout = domain.Cents(payout)
	return &t, nil
}

var _ TransactionRepository = (*PGTransactionRepository)(nil)
