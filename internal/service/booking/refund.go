package booking

import (
	"fmt"
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
)

const (
	fullRefundLead = 24 * time.Hour
	halfRefundLead = 12 * time.Hour
)

// Settle splits a paid transaction for a booking that just moved to cancelled or no_show.
// responsible is the canceller, or the absent party for a no-show.
//
// RefundAmount + WorkerPayout + PlatformRetained always equals the transaction total.
func Settle(t *domain.Transaction, b *domain.Booking, responsible domain.Role, now time.Time) (domain.Settlement, error) {
	switch b.Status {
	case domain.BookingStatusCancelled, domain.BookingStatusNoShow:
	default:
		return domain.Settlement{}, fmt.Errorf("no settlement for status %s", b.Status)
	}

	if responsible == domain.RoleWorker {
		return domain.Settlement{RefundAmount: t.TotalAmount}, nil
	}
	if responsible != domain.RoleClient {
		return domain.Settlement{}, fmt.Errorf("settlement needs a responsible party, got %q", responsible)
	}

	if b.Status == domain.BookingStatusNoShow {
		return keepAll(t), nil
	}

	start, err := b.ScheduledStart()
	if err != nil {
		return domain.Settlement{}, err
	}
	lead := start.Sub(now)
	switch {
	case lead > fullRefundLead:
		return domain.Settlement{RefundAmount: t.WorkerAmount, PlatformRetained: t.PlatformFee}, nil
	case lead >= halfRefundLead:
		refund := (t.WorkerAmount + 1) / 2
		return domain.Settlement{
			RefundAmount:     refund,
			WorkerPayout:     t.WorkerAmount - refund,
			PlatformRetained: t.PlatformFee,
		}, nil
	default:
		return keepAll(t), nil
	}
}

func keepAll(t *domain.Transaction) domain.Settlement {
	return domain.Settlement{WorkerPayout: t.WorkerAmount, PlatformRetained: t.PlatformFee}
}

// Completion pays the worker in full.
func Completion(t *domain.Transaction) domain.Settlement {
	return keepAll(t)
}
