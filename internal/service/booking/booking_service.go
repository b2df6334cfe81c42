package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/domestiq/bookingcore/internal/kafka"
	"github.com/domestiq/bookingcore/internal/ledger"
	"github.com/domestiq/bookingcore/internal/metrics"
	"github.com/domestiq/bookingcore/internal/repository"
	"github.com/domestiq/bookingcore/internal/service/notifications"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/domestiq/bookingcore/internal/service/booking")

type BookingUseCase interface {
	CreateBooking(ctx context.Context, actor domain.Actor, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error)
	ListBookings(ctx context.Context, actor domain.Actor, filter ListFilter) ([]domain.Booking, error)
	GetTransaction(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (*domain.Transaction, error)
	QuoteFee(amount domain.Cents) (ledger.Quote, error)

	Transition(ctx context.Context, req TransitionRequest) (*domain.Booking, error)
	Accept(ctx context.Context, actor domain.Actor, id uuid.UUID, quotedAmount *domain.Cents) (*domain.Booking, error)
	Decline(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.Booking, error)
	Confirm(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error)
	Start(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error)
	Complete(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error)
	Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.Booking, error)
	MarkNoShow(ctx context.Context, actor domain.Actor, id uuid.UUID, absent domain.Role, reason string) (*domain.Booking, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	bookings     repository.BookingRepository
	transactions repository.TransactionRepository
	emitter      *notifications.Emitter
	fees         ledger.FeePolicy
	producer     Producer
	bookingTopic string
	now          func() time.Time
}

type BookingServiceOption func(*BookingService)

// WithClock replaces time.Now. Refund windows are evaluated against it.
func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	transactions repository.TransactionRepository,
	emitter *notifications.Emitter,
	fees ledger.FeePolicy,
	producer Producer,
	bookingTopic string,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:     bookings,
		transactions: transactions,
		emitter:      emitter,
		fees:         fees,
		producer:     producer,
		bookingTopic: bookingTopic,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

type CreateBookingInput struct {
	WorkerID              uuid.UUID     `json:"worker_id"`
	ScheduledDate         string        `json:"scheduled_date"` // YYYY-MM-DD
	StartTime             string        `json:"start_time"`     // HH:MM
	EndTime               *string       `json:"end_time,omitempty"`
	EstimatedDurationMins int           `json:"estimated_duration_mins"`
	Address               string        `json:"address"`
	Suburb                string        `json:"suburb"`
	City                  string        `json:"city"`
	Province              string        `json:"province"`
	PostalCode            string        `json:"postal_code"`
	LocationLat           *float64      `json:"location_lat,omitempty"`
	LocationLng           *float64      `json:"location_lng,omitempty"`
	TotalAmount           *domain.Cents `json:"total_amount,omitempty"`
}

type ListFilter struct {
	Statuses []domain.BookingStatus
	Limit    int
	Offset   int
}

// TransitionRequest asks for one status change. QuotedAmount is only read on accept and
// NoShowParty only on no_show.
type TransitionRequest struct {
	BookingID    uuid.UUID
	To           domain.BookingStatus
	Actor        domain.Actor
	Reason       string
	QuotedAmount *domain.Cents
	NoShowParty  domain.Role
}

func (s *BookingService) CreateBooking(ctx context.Context, actor domain.Actor, input CreateBookingInput) (*domain.Booking, error) {
	if actor.Role != domain.RoleClient {
		return nil, fmt.Errorf("only clients create bookings: %w", domain.ErrNotParticipant)
	}
	b, err := s.newBooking(actor.ID, input)
	if err != nil {
		return nil, err
	}

	note := s.emitter.ForTransition(b, domain.BookingStatusPending, b.WorkerID)
	if err := s.bookings.Create(ctx, b, note); err != nil {
		return nil, err
	}
	metrics.IncBookingCreated()

	if err := s.publish(ctx, "booking_requested", "", actor.Role, b); err != nil {
		log.Printf("WARNING: Failed to publish booking_requested event for booking %s: %v", b.ID, err)
	}
	return b, nil
}

func (s *BookingService) newBooking(clientID uuid.UUID, input CreateBookingInput) (*domain.Booking, error) {
	if input.WorkerID == uuid.Nil {
		return nil, domain.ValidationError{Field: "worker_id", Msg: "is required"}
	}
	if input.WorkerID == clientID {
		return nil, domain.ValidationError{Field: "worker_id", Msg: "cannot book yourself"}
	}
	date, err := time.ParseInLocation(time.DateOnly, input.ScheduledDate, domain.Location)
	if err != nil {
		return nil, domain.ValidationError{Field: "scheduled_date", Msg: "must be YYYY-MM-DD"}
	}
	start, err := time.Parse("15:04", input.StartTime)
	if err != nil {
		return nil, domain.ValidationError{Field: "start_time", Msg: "must be HH:MM"}
	}
	if input.EndTime != nil {
		end, err := time.Parse("15:04", *input.EndTime)
		if err != nil {
			return nil, domain.ValidationError{Field: "end_time", Msg: "must be HH:MM"}
		}
		if !end.After(start) {
			return nil, domain.ValidationError{Field: "end_time", Msg: "must be after start_time"}
		}
	}
	if input.EstimatedDurationMins <= 0 {
		return nil, domain.ValidationError{Field: "estimated_duration_mins", Msg: "must be positive"}
	}
	for _, f := range []struct{ name, value string }{
		{"address", input.Address}, {"suburb", input.Suburb}, {"city", input.City},
	} {
		if strings.TrimSpace(f.value) == "" {
			return nil, domain.ValidationError{Field: f.name, Msg: "is required"}
		}
	}
	if input.TotalAmount != nil && !domain.ValidAmount(*input.TotalAmount) {
		return nil, fmt.Errorf("total_amount: %w", domain.ErrInvalidAmount)
	}

	b := &domain.Booking{
		ID:                    uuid.New(),
		ClientID:              clientID,
		WorkerID:              input.WorkerID,
		ScheduledDate:         date,
		StartTime:             input.StartTime,
		EndTime:               input.EndTime,
		EstimatedDurationMins: input.EstimatedDurationMins,
		Address:               strings.TrimSpace(input.Address),
		Suburb:                strings.TrimSpace(input.Suburb),
		City:                  strings.TrimSpace(input.City),
		Province:              strings.TrimSpace(input.Province),
		PostalCode:            strings.TrimSpace(input.PostalCode),
		LocationLat:           input.LocationLat,
		LocationLng:           input.LocationLng,
		TotalAmount:           input.TotalAmount,
		Status:                domain.BookingStatusPending,
	}
	at, err := b.ScheduledStart()
	if err != nil {
		return nil, domain.ValidationError{Field: "start_time", Msg: err.Error()}
	}
	if !at.After(s.now()) {
		return nil, domain.ValidationError{Field: "scheduled_date", Msg: "must be in the future"}
	}
	return b, nil
}

func (s *BookingService) GetBooking(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkParticipant(actor, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BookingService) ListBookings(ctx context.Context, actor domain.Actor, filter ListFilter) ([]domain.Booking, error) {
	f := repository.BookingFilter{Statuses: filter.Statuses, Limit: filter.Limit, Offset: filter.Offset}
	switch actor.Role {
	case domain.RoleClient:
		f.ClientID = &actor.ID
	case domain.RoleWorker:
		f.WorkerID = &actor.ID
	}
	return s.bookings.List(ctx, f)
}

func (s *BookingService) GetTransaction(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (*domain.Transaction, error) {
	if _, err := s.GetBooking(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return s.transactions.GetActiveByBooking(ctx, bookingID)
}

func (s *BookingService) QuoteFee(amount domain.Cents) (ledger.Quote, error) {
	return ledger.ComputeFee(amount, s.fees)
}

func (s *BookingService) Accept(ctx context.Context, actor domain.Actor, id uuid.UUID, quotedAmount *domain.Cents) (*domain.Booking, error) {
	return s.Transition(ctx, TransitionRequest{BookingID: id, To: domain.BookingStatusAccepted, Actor: actor, QuotedAmount: quotedAmount})
}

func (s *BookingService) Decline(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.Booking, error) {
	return s.Transition(ctx, TransitionRequest{BookingID: id, To: domain.BookingStatusDeclined, Actor: actor, Reason: reason})
}

func (s *BookingService) Confirm(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
	return s.Transition(ctx, TransitionRequest{BookingID: id, To: domain.BookingStatusConfirmed, Actor: actor})
}

func (s *BookingService) Start(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
	return s.Transition(ctx, TransitionRequest{BookingID: id, To: domain.BookingStatusInProgress, Actor: actor})
}

func (s *BookingService) Complete(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
	return s.Transition(ctx, TransitionRequest{BookingID: id, To: domain.BookingStatusCompleted, Actor: actor})
}

func (s *BookingService) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.Booking, error) {
	return s.Transition(ctx, TransitionRequest{BookingID: id, To: domain.BookingStatusCancelled, Actor: actor, Reason: reason})
}

// MarkNoShow records that absent did not turn up. Parties can only report each other;
// the system actor must say who was absent.
func (s *BookingService) MarkNoShow(ctx context.Context, actor domain.Actor, id uuid.UUID, absent domain.Role, reason string) (*domain.Booking, error) {
	return s.Transition(ctx, TransitionRequest{BookingID: id, To: domain.BookingStatusNoShow, Actor: actor, Reason: reason, NoShowParty: absent})
}

// Transition validates the requested move against the stored status and the actor's role,
// then persists the new status together with its transaction changes and notification.
// Nothing is written when validation fails.
func (s *BookingService) Transition(ctx context.Context, req TransitionRequest) (_ *domain.Booking, err error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "booking.Transition")
	span.SetAttributes(
		attribute.String("booking.id", req.BookingID.String()),
		attribute.String("booking.to", string(req.To)),
		attribute.String("actor.role", string(req.Actor.Role)),
	)
	defer func() {
		metrics.ObserveTransition(string(req.To), outcome(err), started)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	current, err := s.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if err := checkParticipant(req.Actor, current); err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, req.To, req.Actor.Role) {
		return nil, &domain.IllegalTransitionError{From: current.Status, To: req.To, Role: req.Actor.Role}
	}

	w, err := s.plan(ctx, current, req)
	if err != nil {
		return nil, err
	}

	updated, err := s.bookings.ApplyTransition(ctx, *w)
	if err != nil {
		return nil, err
	}
	if w.Settle != nil {
		metrics.AddRefund(int64(w.Settle.RefundAmount))
	}

	if err := s.publish(ctx, eventType(req.To), current.Status, req.Actor.Role, updated); err != nil {
		log.Printf("WARNING: Failed to publish %s event for booking %s: %v", eventType(req.To), updated.ID, err)
	}
	return updated, nil
}

// plan builds everything the transition writes.
func (s *BookingService) plan(ctx context.Context, current *domain.Booking, req TransitionRequest) (*repository.TransitionWrite, error) {
	now := s.now()
	next := *current
	next.Status = req.To
	w := &repository.TransitionWrite{Booking: &next, From: current.Status}

	// The party who did not act hears about it. For no-shows that is the absent party.
	recipient := current.Counterparty(req.Actor.Role)

	switch req.To {
	case domain.BookingStatusAccepted:
		txn, err := s.acceptTransaction(ctx, &next, req.QuotedAmount, now)
		if err != nil {
			return nil, err
		}
		w.NewTransaction = txn

	case domain.BookingStatusDeclined:
		next.CancellationReason = reasonPtr(req.Reason)

	case domain.BookingStatusConfirmed:
		txn, err := s.activeTransaction(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		if txn == nil || !txn.Status.Paid() {
			return nil, fmt.Errorf("confirm booking %s: %w", current.ID, domain.ErrPaymentRequired)
		}

	case domain.BookingStatusInProgress:
		next.ActualStartTime = &now

	case domain.BookingStatusCompleted:
		next.CompletedAt = &now
		txn, err := s.activeTransaction(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		if txn != nil && txn.Status == domain.TransactionStatusCompleted {
			w.Settle = &repository.SettleWrite{TransactionID: txn.ID, Status: txn.Status, Settlement: Completion(txn)}
		}

	case domain.BookingStatusCancelled:
		actorID := req.Actor.ID
		next.CancelledBy = &actorID
		next.CancellationReason = reasonPtr(req.Reason)
		settle, err := s.settle(ctx, current.ID, &next, req.Actor.Role, now)
		if err != nil {
			return nil, err
		}
		w.Settle = settle

	case domain.BookingStatusNoShow:
		absent, err := noShowParty(req)
		if err != nil {
			return nil, err
		}
		next.CancellationReason = reasonPtr(req.Reason)
		if req.Actor.Role != domain.RoleSystem {
			actorID := req.Actor.ID
			next.CancelledBy = &actorID
		}
		settle, err := s.settle(ctx, current.ID, &next, absent, now)
		if err != nil {
			return nil, err
		}
		w.Settle = settle
		if absent == domain.RoleClient {
			recipient = current.ClientID
		} else {
			recipient = current.WorkerID
		}
	}

	w.Notification = s.emitter.ForTransition(&next, req.To, recipient)
	return w, nil
}

// acceptTransaction fixes the booking amount and prices it. An amount already on the booking
// cannot be changed; re-quoting the same amount reuses a matching pending transaction.
func (s *BookingService) acceptTransaction(ctx context.Context, next *domain.Booking, quoted *domain.Cents, now time.Time) (*domain.Transaction, error) {
	switch {
	case next.TotalAmount == nil && quoted == nil:
		return nil, domain.ValidationError{Field: "total_amount", Msg: "is required to accept a booking without a price"}
	case next.TotalAmount == nil:
		amount := *quoted
		next.TotalAmount = &amount
	case quoted != nil && *quoted != *next.TotalAmount:
		return nil, fmt.Errorf("booking %s has amount %s: %w", next.ID, *next.TotalAmount, domain.ErrAmountImmutable)
	}

	quote, err := ledger.ComputeFee(*next.TotalAmount, s.fees)
	if err != nil {
		return nil, err
	}
	existing, err := s.activeTransaction(ctx, next.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == domain.TransactionStatusPending && quote.Matches(existing) {
		return nil, nil
	}
	return quote.Transaction(next.ID, now), nil
}

func (s *BookingService) settle(ctx context.Context, bookingID uuid.UUID, next *domain.Booking, responsible domain.Role, now time.Time) (*repository.SettleWrite, error) {
	txn, err := s.activeTransaction(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if txn == nil || txn.Status != domain.TransactionStatusCompleted {
		return nil, nil
	}
	split, err := Settle(txn, next, responsible, now)
	if err != nil {
		return nil, err
	}
	status := txn.Status
	if split.RefundAmount > 0 {
		status = domain.TransactionStatusRefunded
	}
	return &repository.SettleWrite{TransactionID: txn.ID, Status: status, Settlement: split}, nil
}

// activeTransaction returns nil when the booking has none.
func (s *BookingService) activeTransaction(ctx context.Context, bookingID uuid.UUID) (*domain.Transaction, error) {
	txn, err := s.transactions.GetActiveByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return txn, nil
}

func noShowParty(req TransitionRequest) (domain.Role, error) {
	switch req.Actor.Role {
	case domain.RoleWorker:
		if req.NoShowParty != "" && req.NoShowParty != domain.RoleClient {
			return "", domain.ValidationError{Field: "absent_party", Msg: "a worker can only report the client"}
		}
		return domain.RoleClient, nil
	case domain.RoleClient:
		if req.NoShowParty != "" && req.NoShowParty != domain.RoleWorker {
			return "", domain.ValidationError{Field: "absent_party", Msg: "a client can only report the worker"}
		}
		return domain.RoleWorker, nil
	}
	if req.NoShowParty != domain.RoleClient && req.NoShowParty != domain.RoleWorker {
		return "", domain.ValidationError{Field: "absent_party", Msg: "must be client or worker"}
	}
	return req.NoShowParty, nil
}

func checkParticipant(actor domain.Actor, b *domain.Booking) error {
	if actor.Role == domain.RoleSystem {
		return nil
	}
	if b.PartyRole(actor.ID) != actor.Role {
		return fmt.Errorf("booking %s: %w", b.ID, domain.ErrNotParticipant)
	}
	return nil
}

func reasonPtr(reason string) *string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil
	}
	return &reason
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrIllegalTransition):
		return "illegal"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "conflict"
	}
	return "error"
}

func eventType(to domain.BookingStatus) string {
	switch to {
	case domain.BookingStatusInProgress:
		return "booking_started"
	case domain.BookingStatusNoShow:
		return "booking_no_show"
	}
	return "booking_" + string(to)
}

func (s *BookingService) publish(ctx context.Context, eventType string, from domain.BookingStatus, role domain.Role, b *domain.Booking) error {
	if s.producer == nil || s.bookingTopic == "" {
		return nil
	}
	event := kafka.BookingEvent{
		Type:       eventType,
		BookingID:  b.ID.String(),
		ClientID:   b.ClientID.String(),
		WorkerID:   b.WorkerID.String(),
		From:       string(from),
		Status:     string(b.Status),
		ActorRole:  string(role),
		OccurredAt: s.now().UTC(),
	}
	if b.TotalAmount != nil {
		amount := int64(*b.TotalAmount)
		event.TotalAmount = &amount
	}
	return s.producer.Publish(ctx, s.bookingTopic, b.ID.String(), event)
}

var _ BookingUseCase = (*BookingService)(nil)
