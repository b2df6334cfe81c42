package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusRefunded   TransactionStatus = "refunded"
	TransactionStatusDisputed   TransactionStatus = "disputed"
)

func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch st := TransactionStatus(s); st {
	case TransactionStatusPending, TransactionStatusProcessing, TransactionStatusCompleted,
		TransactionStatusFailed, TransactionStatusRefunded, TransactionStatusDisputed:
		return st, nil
	}
	return "", fmt.Errorf("unknown transaction status %q", s)
}

// Paid reports whether money was captured for the transaction.
func (s TransactionStatus) Paid() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusRefunded || s == TransactionStatusDisputed
}

// Transaction is the settlement record for one booking's payment.
// TotalAmount always equals WorkerAmount + PlatformFee.
type Transaction struct {
	ID        uuid.UUID
	BookingID uuid.UUID

	WorkerAmount Cents
	PlatformFee  Cents
	TotalAmount  Cents
	// Rate used when the fee was computed, in basis points (1200 = 12%).
	PlatformFeeBasisPoints int64

	Status            TransactionStatus
	PaystackReference *string
	PaidAt            *time.Time

	RefundAmount    Cents
	WorkerPayout    Cents
	RefundReference *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlatformFeePercent returns the stored rate as a percentage.
func (t *Transaction) PlatformFeePercent() float64 {
	return float64(t.PlatformFeeBasisPoints) / 100
}

// Settlement is how a paid amount is split when a booking ends without completion.
type Settlement struct {
	RefundAmount     Cents
	WorkerPayout     Cents
	PlatformRetained Cents
}
