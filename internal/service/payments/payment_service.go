package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/domestiq/bookingcore/internal/ledger"
	"github.com/domestiq/bookingcore/internal/metrics"
	"github.com/domestiq/bookingcore/internal/paystack"
	"github.com/domestiq/bookingcore/internal/repository"
	"github.com/domestiq/bookingcore/internal/service/booking"
	"github.com/domestiq/bookingcore/internal/service/notifications"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/domestiq/bookingcore/internal/service/payments")

// Payment failures are kept apart from booking-state failures.
var (
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrPaymentMismatch  = errors.New("payment does not match the transaction")
	ErrAlreadyPaid      = errors.New("booking is already paid")
	ErrGateway          = errors.New("payment gateway unavailable")
	ErrInvalidSignature = paystack.ErrInvalidSignature
)

type PaymentUseCase interface {
	Initialize(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, email string) (*Checkout, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	Verify(ctx context.Context, reference string) (*domain.Transaction, error)
	ProcessRefunds(ctx context.Context) (int, error)
}

type Gateway interface {
	InitializeTransaction(ctx context.Context, in paystack.InitializeRequest) (*paystack.InitializeResponse, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Charge, error)
	CreateRefund(ctx context.Context, reference string, amount int64, idempotencyKey string) (*paystack.Refund, error)
	ListRefunds(ctx context.Context, reference string) ([]paystack.Refund, error)
	VerifySignature(body []byte, signature string) error
}

// EventDeduper remembers webhook deliveries that were already handled.
type EventDeduper interface {
	ClaimWebhookEvent(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseWebhookEvent(ctx context.Context, key string) error
}

// Confirmer moves a paid booking from accepted to confirmed.
type Confirmer interface {
	Confirm(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error)
}

type Checkout struct {
	AuthorizationURL string       `json:"authorization_url"`
	AccessCode       string       `json:"access_code"`
	Reference        string       `json:"reference"`
	Amount           domain.Cents `json:"amount"`
	Currency         string       `json:"currency"`
}

type PaymentService struct {
	bookings     repository.BookingRepository
	transactions repository.TransactionRepository
	gateway      Gateway
	dedup        EventDeduper
	confirmer    Confirmer
	emitter      *notifications.Emitter
	callbackURL  string
	dedupTTL     time.Duration
	refundBatch  int
	now          func() time.Time
}

type PaymentServiceOption func(*PaymentService)

func WithCallbackURL(url string) PaymentServiceOption {
	return func(s *PaymentService) {
		s.callbackURL = url
	}
}

func WithDedupTTL(ttl time.Duration) PaymentServiceOption {
	return func(s *PaymentService) {
		s.dedupTTL = ttl
	}
}

func NewPaymentService(
	bookings repository.BookingRepository,
	transactions repository.TransactionRepository,
	gateway Gateway,
	dedup EventDeduper,
	confirmer Confirmer,
	emitter *notifications.Emitter,
	opts ...PaymentServiceOption,
) *PaymentService {
	s := &PaymentService{
		bookings:     bookings,
		transactions: transactions,
		gateway:      gateway,
		dedup:        dedup,
		confirmer:    confirmer,
		emitter:      emitter,
		dedupTTL:     72 * time.Hour,
		refundBatch:  50,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize starts a Paystack checkout for the booking's active transaction. The transaction
// id is the payment reference, so a retried checkout reuses it. After a failed charge the
// reference is spent, so a new pending transaction with the same quote takes its place.
func (s *PaymentService) Initialize(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, email string) (*Checkout, error) {
	ctx, span := tracer.Start(ctx, "payments.Initialize")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", bookingID.String()))

	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ValidationError{Field: "email", Msg: "a valid email is required"}
	}

	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleClient || b.ClientID != actor.ID {
		return nil, fmt.Errorf("booking %s: %w", bookingID, domain.ErrNotParticipant)
	}
	if b.Status != domain.BookingStatusAccepted {
		return nil, &domain.IllegalTransitionError{From: b.Status, To: domain.BookingStatusConfirmed, Role: actor.Role}
	}

	txn, err := s.transactions.GetActiveByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if txn.Status.Paid() {
		return nil, fmt.Errorf("booking %s: %w", bookingID, ErrAlreadyPaid)
	}
	if txn.Status == domain.TransactionStatusFailed {
		quote := ledger.Quote{
			WorkerAmount:   txn.WorkerAmount,
			PlatformFee:    txn.PlatformFee,
			TotalAmount:    txn.TotalAmount,
			FeeBasisPoints: txn.PlatformFeeBasisPoints,
		}
		retry := quote.Transaction(bookingID, s.now().UTC())
		if err := s.transactions.Regenerate(ctx, txn.ID, retry); err != nil {
			return nil, err
		}
		txn = retry
	}

	reference := txn.ID.String()
	res, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       email,
		Amount:      int64(txn.TotalAmount),
		Currency:    domain.Currency,
		Reference:   reference,
		CallbackURL: s.callbackURL,
		Metadata: map[string]string{
			"booking_id":     bookingID.String(),
			"transaction_id": txn.ID.String(),
		},
	})
	if err != nil {
		metrics.IncPaymentEvent("initialize", "error")
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	if err := s.transactions.MarkProcessing(ctx, txn.ID, reference); err != nil {
		return nil, err
	}
	metrics.IncPaymentEvent("initialize", "ok")

	return &Checkout{
		AuthorizationURL: res.AuthorizationURL,
		AccessCode:       res.AccessCode,
		Reference:        reference,
		Amount:           txn.TotalAmount,
		Currency:         domain.Currency,
	}, nil
}

// HandleWebhook applies a signed Paystack event. Redeliveries of a handled event are ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	ctx, span := tracer.Start(ctx, "payments.HandleWebhook")
	defer span.End()

	if err := s.gateway.VerifySignature(body, signature); err != nil {
		metrics.IncPaymentEvent("webhook", "bad_signature")
		return err
	}
	ev, err := paystack.ParseEvent(body)
	if err != nil {
		return domain.ValidationError{Field: "body", Msg: err.Error()}
	}
	span.SetAttributes(attribute.String("paystack.event", ev.Event), attribute.String("paystack.reference", ev.Data.Reference))

	if ev.Event != paystack.EventChargeSuccess && ev.Event != paystack.EventChargeFailed {
		metrics.IncPaymentEvent(ev.Event, "ignored")
		return nil
	}

	key := ev.DedupKey()
	if s.dedup != nil {
		claimed, err := s.dedup.ClaimWebhookEvent(ctx, key, s.dedupTTL)
		if err != nil {
			log.Printf("WARNING: webhook dedup unavailable for %s: %v", key, err)
		} else if !claimed {
			metrics.IncPaymentEvent(ev.Event, "duplicate")
			return nil
		}
	}

	if _, err := s.reconcile(ctx, ev.Data); err != nil {
		metrics.IncPaymentEvent(ev.Event, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if s.dedup != nil {
			if rerr := s.dedup.ReleaseWebhookEvent(ctx, key); rerr != nil {
				log.Printf("WARNING: release webhook claim %s: %v", key, rerr)
			}
		}
		return err
	}
	metrics.IncPaymentEvent(ev.Event, "ok")
	return nil
}

// Verify reconciles a transaction with Paystack's view of it. Used by the checkout redirect.
func (s *PaymentService) Verify(ctx context.Context, reference string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "payments.Verify")
	defer span.End()

	if _, err := uuid.Parse(reference); err != nil {
		return nil, fmt.Errorf("reference %q: %w", reference, ErrPaymentNotFound)
	}
	charge, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		var apiErr *paystack.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return nil, fmt.Errorf("reference %q: %w", reference, ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if charge.Reference == "" {
		charge.Reference = reference
	}
	return s.reconcile(ctx, *charge)
}

// reconcile records the outcome of a charge on its transaction, then confirms the booking
// on the client's behalf when the charge succeeded.
func (s *PaymentService) reconcile(ctx context.Context, charge paystack.Charge) (*domain.Transaction, error) {
	id, err := uuid.Parse(charge.Reference)
	if err != nil {
		return nil, fmt.Errorf("reference %q: %w", charge.Reference, ErrPaymentNotFound)
	}
	txn, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("reference %q: %w", charge.Reference, ErrPaymentNotFound)
		}
		return nil, err
	}
	b, err := s.bookings.GetByID(ctx, txn.BookingID)
	if err != nil {
		return nil, err
	}

	switch {
	case charge.Succeeded():
		if charge.Amount != int64(txn.TotalAmount) || (charge.Currency != "" && charge.Currency != domain.Currency) {
			return nil, fmt.Errorf("reference %s paid %d %s, expected %d %s: %w",
				charge.Reference, charge.Amount, charge.Currency, int64(txn.TotalAmount), domain.Currency, ErrPaymentMismatch)
		}
		paidAt := s.now().UTC()
		if charge.PaidAt != nil {
			paidAt = charge.PaidAt.UTC()
		}
		if _, err := s.transactions.MarkPaid(ctx, txn.ID, paidAt, s.emitter.PaymentReceived(b, txn)); err != nil {
			return nil, err
		}
		if ended(b.Status) {
			if err := s.settleLate(ctx, b, txn); err != nil {
				return nil, err
			}
			break
		}
		if err := s.confirm(ctx, b, txn); err != nil {
			return nil, err
		}

	case charge.Status == "failed" || charge.Status == "abandoned" || charge.Status == "reversed":
		if _, err := s.transactions.MarkFailed(ctx, txn.ID, s.emitter.PaymentFailed(b, txn)); err != nil {
			return nil, err
		}

	default:
		// still pending at Paystack
		return txn, nil
	}

	return s.transactions.GetByID(ctx, txn.ID)
}

// ended is true for bookings that can no longer be served.
func ended(st domain.BookingStatus) bool {
	switch st {
	case domain.BookingStatusCancelled, domain.BookingStatusDeclined, domain.BookingStatusNoShow:
		return true
	}
	return false
}

// settleLate applies the refund policy to a charge captured after its booking was cancelled,
// declined or marked no-show, as of the moment the booking ended. A replay settles to the same
// split and the repository ignores it once recorded.
func (s *PaymentService) settleLate(ctx context.Context, b *domain.Booking, txn *domain.Transaction) error {
	split := domain.Settlement{RefundAmount: txn.TotalAmount}
	if responsible := lateResponsible(b); responsible != "" {
		var err error
		if split, err = booking.Settle(txn, b, responsible, b.UpdatedAt); err != nil {
			return err
		}
	}
	status := domain.TransactionStatusCompleted
	if split.RefundAmount > 0 {
		status = domain.TransactionStatusRefunded
	}
	applied, err := s.transactions.Settle(ctx, txn.ID, status, split)
	if err != nil {
		return err
	}
	if applied {
		metrics.AddRefund(int64(split.RefundAmount))
		log.Printf("WARNING: payment for booking %s arrived in status %s; refund %s, payout %s",
			b.ID, b.Status, split.RefundAmount, split.WorkerPayout)
	}
	return nil
}

// lateResponsible names the party a late payment is settled against. Empty means a full refund:
// a declined booking, or an ended booking whose responsible party was not recorded.
func lateResponsible(b *domain.Booking) domain.Role {
	if b.CancelledBy == nil {
		return ""
	}
	reporter := b.PartyRole(*b.CancelledBy)
	switch b.Status {
	case domain.BookingStatusCancelled:
		return reporter
	case domain.BookingStatusNoShow:
		// the reporter is present; the other party was absent
		switch reporter {
		case domain.RoleClient:
			return domain.RoleWorker
		case domain.RoleWorker:
			return domain.RoleClient
		}
	}
	return ""
}

// confirm is best effort: the payment is recorded either way and a client can still confirm.
// When the booking ended meanwhile, the payment is settled as a late one instead.
func (s *PaymentService) confirm(ctx context.Context, b *domain.Booking, txn *domain.Transaction) error {
	if s.confirmer == nil || b.Status != domain.BookingStatusAccepted {
		return nil
	}
	client := domain.Actor{ID: b.ClientID, Role: domain.RoleClient}
	_, err := s.confirmer.Confirm(ctx, client, b.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrConcurrentModification) && !errors.Is(err, domain.ErrIllegalTransition) {
		log.Printf("WARNING: confirm paid booking %s: %v", b.ID, err)
		return nil
	}

	current, gerr := s.bookings.GetByID(ctx, b.ID)
	if gerr != nil {
		return gerr
	}
	if ended(current.Status) {
		return s.settleLate(ctx, current, txn)
	}
	log.Printf("booking %s moved to %s before payment confirmation", b.ID, current.Status)
	return nil
}

// ProcessRefunds sends the refunds decided at cancellation to Paystack and returns how many
// were accepted.
func (s *PaymentService) ProcessRefunds(ctx context.Context) (int, error) {
	pending, err := s.transactions.ListPendingRefunds(ctx, s.refundBatch)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, t := range pending {
		if t.PaystackReference == nil {
			continue
		}
		refund, err := s.existingRefund(ctx, *t.PaystackReference)
		if err != nil {
			metrics.IncPaymentEvent("refund", "error")
			log.Printf("WARNING: look up refunds for transaction %s: %v", t.ID, err)
			continue
		}
		if refund == nil {
			refund, err = s.gateway.CreateRefund(ctx, *t.PaystackReference, int64(t.RefundAmount), "refund-"+t.ID.String())
		}
		if err != nil {
			metrics.IncPaymentEvent("refund", "error")
			log.Printf("WARNING: refund %s for transaction %s: %v", t.RefundAmount, t.ID, err)
			continue
		}
		if err := s.transactions.SetRefundReference(ctx, t.ID, refund.Reference()); err != nil {
			return done, err
		}
		metrics.IncPaymentEvent("refund", "ok")
		done++
	}
	return done, nil
}

// existingRefund finds a refund already created for the charge, left unrecorded when storing
// its reference failed. Nil when there is none that could still succeed.
func (s *PaymentService) existingRefund(ctx context.Context, reference string) (*paystack.Refund, error) {
	refunds, err := s.gateway.ListRefunds(ctx, reference)
	if err != nil {
		return nil, err
	}
	for i := range refunds {
		if !refunds[i].Failed() {
			return &refunds[i], nil
		}
	}
	return nil, nil
}

var _ PaymentUseCase = (*PaymentService)(nil)
