// Package statement builds a worker's income statement from settled transactions.
package statement

import (
	"context"
	"fmt"
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/domestiq/bookingcore/internal/repository"
	"github.com/google/uuid"
)

// MaxRange bounds a single statement.
const MaxRange = 366 * 24 * time.Hour

type Line struct {
	BookingID     uuid.UUID            `json:"booking_id"`
	ScheduledDate string               `json:"scheduled_date"`
	Area          string               `json:"area"`
	BookingStatus domain.BookingStatus `json:"booking_status"`
	Gross         domain.Cents         `json:"gross"`
	WorkerAmount  domain.Cents         `json:"worker_amount"`
	Payout        domain.Cents         `json:"payout"`
	Refund        domain.Cents         `json:"refund"`
	Fee           domain.Cents         `json:"fee"`
}

type Totals struct {
	Jobs    int          `json:"jobs"`
	Gross   domain.Cents `json:"gross"`
	Payout  domain.Cents `json:"payout"`
	Refunds domain.Cents `json:"refunds"`
	Fees    domain.Cents `json:"fees"`
}

type Statement struct {
	WorkerID    uuid.UUID `json:"worker_id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	GeneratedAt time.Time `json:"generated_at"`
	Lines       []Line    `json:"lines"`
	Totals      Totals    `json:"totals"`
}

type StatementUseCase interface {
	Build(ctx context.Context, workerID uuid.UUID, from, to time.Time) (*Statement, error)
}

type StatementService struct {
	transactions repository.TransactionRepository
	now          func() time.Time
}

func NewStatementService(transactions repository.TransactionRepository) *StatementService {
	return &StatementService{transactions: transactions, now: time.Now}
}

// Build covers bookings scheduled on the dates from..to inclusive. Cancelled and no-show
// bookings only appear when the worker was paid something for them.
func (s *StatementService) Build(ctx context.Context, workerID uuid.UUID, from, to time.Time) (*Statement, error) {
	from = dateOf(from)
	to = dateOf(to)
	if to.Before(from) {
		return nil, domain.ValidationError{Field: "to", Msg: "must not be before from"}
	}
	end := to.AddDate(0, 0, 1)
	if end.Sub(from) > MaxRange {
		return nil, domain.ValidationError{Field: "to", Msg: "statement period is limited to one year"}
	}

	settled, err := s.transactions.ListSettledForWorker(ctx, workerID, from, end)
	if err != nil {
		return nil, err
	}

	st := &Statement{
		WorkerID:    workerID,
		From:        from.Format(time.DateOnly),
		To:          to.Format(time.DateOnly),
		GeneratedAt: s.now().UTC(),
		Lines:       make([]Line, 0, len(settled)),
	}
	for _, sl := range settled {
		line, ok := lineFor(sl)
		if !ok {
			continue
		}
		st.Lines = append(st.Lines, line)
		st.Totals.Jobs++
		st.Totals.Gross += line.Gross
		st.Totals.Payout += line.Payout
		st.Totals.Refunds += line.Refund
		st.Totals.Fees += line.Fee
	}
	return st, nil
}

func lineFor(sl repository.SettledLine) (Line, bool) {
	t := sl.Transaction
	payout := t.WorkerPayout
	if sl.BookingStatus == domain.BookingStatusCompleted && payout == 0 && t.RefundAmount == 0 {
		// paid after completion was recorded
		payout = t.WorkerAmount
	}
	if sl.BookingStatus != domain.BookingStatusCompleted && payout == 0 {
		return Line{}, false
	}

	area := sl.Suburb
	if sl.City != "" {
		if area != "" {
			area += ", "
		}
		area += sl.City
	}
	return Line{
		BookingID:     sl.BookingID,
		ScheduledDate: sl.ScheduledDate.Format(time.DateOnly),
		Area:          area,
		BookingStatus: sl.BookingStatus,
		Gross:         t.TotalAmount,
		WorkerAmount:  t.WorkerAmount,
		Payout:        payout,
		Refund:        t.RefundAmount,
		Fee:           t.TotalAmount - payout - t.RefundAmount,
	}, true
}

func dateOf(t time.Time) time.Time {
	t = t.In(domain.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, domain.Location)
}

// Filename is the download name for the given extension.
func (s *Statement) Filename(ext string) string {
	return fmt.Sprintf("statement_%s_to_%s.%s", s.From, s.To, ext)
}

var _ StatementUseCase = (*StatementService)(nil)
