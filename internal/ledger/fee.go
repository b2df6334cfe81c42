// Package ledger computes the split between what a worker earns and what the platform charges on top.
package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/google/uuid"
)

type FeePolicy struct {
	BasisPoints int64 // 1200 = 12%
	MinFee      domain.Cents
	MaxFee      domain.Cents
}

func NewFeePolicy(percent float64, minFee, maxFee domain.Cents) (FeePolicy, error) {
	if math.IsNaN(percent) || percent < 0 || percent > 100 {
		return FeePolicy{}, fmt.Errorf("fee percent %v out of range", percent)
	}
	if minFee < 0 || maxFee < minFee || maxFee > domain.MaxAmount {
		return FeePolicy{}, fmt.Errorf("fee bounds [%s, %s] are invalid", minFee, maxFee)
	}
	return FeePolicy{
		BasisPoints: int64(math.Round(percent * 100)),
		MinFee:      minFee,
		MaxFee:      maxFee,
	}, nil
}

type Quote struct {
	WorkerAmount   domain.Cents `json:"worker_amount"`
	PlatformFee    domain.Cents `json:"platform_fee"`
	TotalAmount    domain.Cents `json:"total_amount"`
	FeeBasisPoints int64        `json:"fee_basis_points"`
}

// ComputeFee rounds the percentage fee half-up to the cent, then clamps it to [MinFee, MaxFee].
// The floor wins over the percentage and the ceiling always holds. Amounts above
// domain.MaxAmount are rejected so the products below cannot overflow.
func ComputeFee(workerAmount domain.Cents, p FeePolicy) (Quote, error) {
	if !domain.ValidAmount(workerAmount) {
		return Quote{}, fmt.Errorf("%w: %d", domain.ErrInvalidAmount, workerAmount)
	}
	raw := (int64(workerAmount)*p.BasisPoints + 5000) / 10000
	fee := domain.Cents(raw)
	if fee < p.MinFee {
		fee = p.MinFee
	}
	if fee > p.MaxFee {
		fee = p.MaxFee
	}
	return Quote{
		WorkerAmount:   workerAmount,
		PlatformFee:    fee,
		TotalAmount:    workerAmount + fee,
		FeeBasisPoints: p.BasisPoints,
	}, nil
}

// Transaction builds the pending settlement record for a booking from the quote.
func (q Quote) Transaction(bookingID uuid.UUID, now time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:                     uuid.New(),
		BookingID:              bookingID,
		WorkerAmount:           q.WorkerAmount,
		PlatformFee:            q.PlatformFee,
		TotalAmount:            q.TotalAmount,
		PlatformFeeBasisPoints: q.FeeBasisPoints,
		Status:                 domain.TransactionStatusPending,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

// Matches reports whether an existing transaction was computed from the same inputs.
func (q Quote) Matches(t *domain.Transaction) bool {
	return t.WorkerAmount == q.WorkerAmount &&
		t.PlatformFee == q.PlatformFee &&
		t.TotalAmount == q.TotalAmount &&
		t.PlatformFeeBasisPoints == q.FeeBasisPoints
}
