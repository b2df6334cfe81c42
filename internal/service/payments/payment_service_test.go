package payments

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/domestiq/bookingcore/internal/paystack"
	"github.com/domestiq/bookingcore/internal/repository"
	"github.com/domestiq/bookingcore/internal/service/notifications"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, b *domain.Booking, n *domain.Notification) error {
	return m.Called(ctx, b, n).Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) List(ctx context.Context, filter repository.BookingFilter) ([]domain.Booking, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ApplyTransition(ctx context.Context, w repository.TransitionWrite) (*domain.Booking, error) {
	args := m.Called(ctx, w)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) GetActiveByBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) MarkProcessing(ctx context.Context, id uuid.UUID, reference string) error {
	return m.Called(ctx, id, reference).Error(0)
}

func (m *MockTransactionRepository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, n *domain.Notification) (bool, error) {
	args := m.Called(ctx, id, paidAt, n)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) MarkFailed(ctx context.Context, id uuid.UUID, n *domain.Notification) (bool, error) {
	args := m.Called(ctx, id, n)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) Regenerate(ctx context.Context, failedID uuid.UUID, next *domain.Transaction) error {
	return m.Called(ctx, failedID, next).Error(0)
}

func (m *MockTransactionRepository) Settle(ctx context.Context, id uuid.UUID, status domain.TransactionStatus, split domain.Settlement) (bool, error) {
	args := m.Called(ctx, id, status, split)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) ListPendingRefunds(ctx context.Context, limit int) ([]domain.Transaction, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) SetRefundReference(ctx context.Context, id uuid.UUID, reference string) error {
	return m.Called(ctx, id, reference).Error(0)
}

func (m *MockTransactionRepository) ListSettledForWorker(ctx context.Context, workerID uuid.UUID, from, to time.Time) ([]repository.SettledLine, error) {
	args := m.Called(ctx, workerID, from, to)
	return args.Get(0).([]repository.SettledLine), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) InitializeTransaction(ctx context.Context, in paystack.InitializeRequest) (*paystack.InitializeResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paystack.InitializeResponse), args.Error(1)
}

func (m *MockGateway) VerifyTransaction(ctx context.Context, reference string) (*paystack.Charge, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paystack.Charge), args.Error(1)
}

func (m *MockGateway) CreateRefund(ctx context.Context, reference string, amount int64, idempotencyKey string) (*paystack.Refund, error) {
	args := m.Called(ctx, reference, amount, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paystack.Refund), args.Error(1)
}

func (m *MockGateway) ListRefunds(ctx context.Context, reference string) ([]paystack.Refund, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]paystack.Refund), args.Error(1)
}

func (m *MockGateway) VerifySignature(body []byte, signature string) error {
	return m.Called(body, signature).Error(0)
}

type MockDeduper struct {
	mock.Mock
}

func (m *MockDeduper) ClaimWebhookEvent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeduper) ReleaseWebhookEvent(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockConfirmer struct {
	mock.Mock
}

func (m *MockConfirmer) Confirm(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type fixture struct {
	bookings     *MockBookingRepository
	transactions *MockTransactionRepository
	gateway      *MockGateway
	dedup        *MockDeduper
	confirmer    *MockConfirmer
	service      *PaymentService
}

func newFixture() *fixture {
	f := &fixture{
		bookings:     &MockBookingRepository{},
		transactions: &MockTransactionRepository{},
		gateway:      &MockGateway{},
		dedup:        &MockDeduper{},
		confirmer:    &MockConfirmer{},
	}
	f.service = NewPaymentService(f.bookings, f.transactions, f.gateway, f.dedup, f.confirmer,
		notifications.NewEmitter(""), WithCallbackURL("https://api.domestiq.co.za/payments/callback"), WithDedupTTL(time.Hour))
	return f
}

func acceptedBooking() (*domain.Booking, *domain.Transaction) {
	amount := domain.Cents(15000)
	b := &domain.Booking{
		ID:            uuid.New(),
		ClientID:      uuid.New(),
		WorkerID:      uuid.New(),
		ScheduledDate: time.Date(2026, 11, 2, 0, 0, 0, 0, domain.Location),
		StartTime:     "09:00",
		TotalAmount:   &amount,
		Status:        domain.BookingStatusAccepted,
	}
	txn := &domain.Transaction{
		ID:                     uuid.New(),
		BookingID:              b.ID,
		WorkerAmount:           15000,
		PlatformFee:            1800,
		TotalAmount:            16800,
		PlatformFeeBasisPoints: 1200,
		Status:                 domain.TransactionStatusPending,
	}
	return b, txn
}

func chargeBody(event, reference string, amount int64) []byte {
	status := "success"
	if event == paystack.EventChargeFailed {
		status = "failed"
	}
	return []byte(fmt.Sprintf(`{"event":%q,"data":{"status":%q,"reference":%q,"amount":%d,"currency":"ZAR"}}`,
		event, status, reference, amount))
}

func TestInitialize_StartsCheckoutWithTransactionReference(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, txn := acceptedBooking()
	client := domain.Actor{ID: b.ClientID, Role: domain.RoleClient}

	f.bookings.On("GetByID", mock.Anything, b.ID).Return(b, nil).Once()
	f.transactions.On("GetActiveByBooking", mock.Anything, b.ID).Return(txn, nil).Once()
	f.gateway.On("InitializeTransaction", mock.Anything, mock.MatchedBy(func(in paystack.InitializeRequest) bool {
		return in.Amount == 16800 && in.Currency == "ZAR" && in.Reference == txn.ID.String() &&
			in.Email == "thandi@example.com" && in.Metadata["booking_id"] == b.ID.String() &&
			in.CallbackURL == "https://api.domestiq.co.za/payments/callback"
	})).Return(&paystack.InitializeResponse{AuthorizationURL: "https://checkout.paystack.com/x", AccessCode: "x", Reference: txn.ID.String()}, nil).Once()
	f.transactions.On("MarkProcessing", mock.Anything, txn.ID, txn.ID.String()).Return(nil).Once()

	checkout, err := f.service.Initialize(ctx, client, b.ID, " thandi@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/x", checkout.AuthorizationURL)
	assert.Equal(t, domain.Cents(16800), checkout.Amount)
	assert.Equal(t, txn.ID.String(), checkout.Reference)
	f.transactions.AssertExpectations(t)
}

func TestInitialize_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid email", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.Initialize(ctx, domain.Actor{Role: domain.RoleClient}, uuid.New(), "nope")
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("not the booking's client", func(t *testing.T) {
		f := newFixture()
		b, _ := acceptedBooking()
		f.bookings.On("GetByID", mock.Anything, b.ID).Return(b, nil).Once()
		_, err := f.service.Initialize(ctx, domain.Actor{ID: b.WorkerID, Role: domain.RoleWorker}, b.ID, "a@b.co")
		assert.True(t, errors.Is(err, domain.ErrNotParticipant))
	})

	t.Run("booking not accepted", func(t *testing.T) {
		f := newFixture()
		b, _ := acceptedBooking()
		b.Status = domain.BookingStatusPending
		f.bookings.On("GetByID", mock.Anything, b.ID).Return(b, nil).Once()
		_, err := f.service.Initialize(ctx, domain.Actor{ID: b.ClientID, Role: domain.RoleClient}, b.ID, "a@b.co")
		assert.True(t, errors.Is(err, domain.ErrIllegalTransition))
	})

	t.Run("already paid", func(t *testing.T) {
		f := newFixture()
		b, txn := acceptedBooking()
		txn.Status = domain.TransactionStatusCompleted
		f.bookings.On("GetByID", mock.Anything, b.ID).Return(b, nil).Once()
		f.transactions.On("GetActiveByBooking", mock.Anything, b.ID).Return(txn, nil).Once()
		_, err := f.service.Initialize(ctx, domain.Actor{ID: b.ClientID, Role: domain.RoleClient}, b.ID, "a@b.co")
		assert.True(t, errors.Is(err, ErrAlreadyPaid))
	})

	t.Run("gateway down", func(t *testing.T) {
		f := newFixture()
		b, txn := acceptedBooking()
		f.bookings.On("GetByID", mock.Anything, b.ID).Return(b, nil).Once()
		f.transactions.On("GetActiveByBooking", mock.Anything, b.ID).Return(txn, nil).Once()
		f.gateway.On("InitializeTransaction", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Once()

		_, err := f.service.Initialize(ctx, domain.Actor{ID: b.ClientID, Role: domain.RoleClient}, b.ID, "a@b.co")
		assert.True(t, errors.Is(err, ErrGateway))
		f.transactions.AssertNotCalled(t, "MarkProcessing", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandleWebhook_ChargeSuccessMarksPaidAndConfirms(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, txn := acceptedBooking()
	body := chargeBody(paystack.EventChargeSuccess, txn.ID.String(), 16800)
	paid := *txn
	paid.Status = domain.TransactionStatusCompleted

	f.gateway.On("VerifySignature", body, "sig").Return(nil).Once()
	f.dedup.On("ClaimWebhookEvent", mock.Anything, "charge.success:"+txn.ID.String(), time.Hour).Return(true, nil).Once()
	f.transactions.On("GetByID", mock.Anything, txn.ID).Return(txn, nil).Once()
	f.bookings.On("GetByID", mock.Anything, b.ID).Return(b, nil).Once()
	f.transactions.On("MarkPaid", mock.Anything, txn.ID, mock.AnythingOfType("time.Time"), mock.MatchedBy(func(n *domain.Notification) bool {
		return n.UserID == b.ClientID && n.Type == domain.NotifPaymentReceived
	})).Return(true, nil).Once()
	f.confirmer.On("Confirm", mock.Anything, domain.Actor{ID: b.ClientID, Role: domain.RoleClient}, b.ID).Return(b, nil).Once()
	f.transactions.On("GetByID", mock.Anything, txn.ID).Return(&paid, nil).Once()

	require.NoError(t, f.service.HandleWebhook(ctx, body, "sig"))
	f.transactions.AssertExpectations(t)
	f.confirmer.AssertExpectations(t)
}

func TestHandleWebhook_DuplicateIsIgnored(t *testing.T) {
	f := newFixture()
	_, txn := acceptedBooking()
	body := chargeBody(paystack.EventChargeSuccess, txn.ID.String(), 16800)

	f.gateway.On("VerifySignature", body, "sig").Return(nil).Once()
	f.dedup.On("ClaimWebhookEvent", mock.Anything, mock.Anything, time.Hour).Return(false, nil).Once()

	require.NoError(t, f.service.HandleWebhook(context.Background(), body, "sig"))
	f.transactions.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestHandleWebhook_BadSignature(t *testing.T) {
	f := newFixture()
	body := []byte(`{"event":"charge.success"}`)
	f.gateway.On("VerifySignature", body, "forged").Return(paystack.ErrInvalidSignature).Once()

	err := f.service.HandleWebhook(context.Background(), body, "forged")
	assert.True(t, errors.Is(err, ErrInvalidSignature))
	f.dedup.AssertNotCalled(t, "ClaimWebhookEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleWebhook_AmountMismatchReleasesClaim(t *testing.T) {
	f := newFixture()
	b, txn := acceptedBooking()
	body := chargeBody(paystack.EventChargeSuccess, txn.ID.String(), 100)
	key := "charge.success:" + txn.ID.String()

	f.gateway.On("VerifySignature", body, "sig").Return(nil).Once()
	f.dedup.On("ClaimWebhookEvent", mock.Anything, key, time.Hour).Return(true, nil).Once()
	f.transactions.On("GetByID", mock.Anything, txn.ID).Return(txn, nil).Once()
	f.bookings.On("GetByID", mock.Anything, b.ID).Return(b, nil).Once()
	f.dedup.On("ReleaseWebhookEvent", mock.Anything, key).Return(nil).Once()

	err := f.service.HandleWebhook(context.Background(), body, "sig")
	assert.True(t, errors.Is(err, ErrPaymentMismatch))
	f.transactions.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.dedup.AssertExpectations(t)
}

func TestHandleWebhook_ChargeFailedNotifiesClient(t *testing.T) {
	f := newFixture()
	b, txn := acceptedBooking()
	body := chargeBody(paystack.EventChargeFailed, txn.ID.String(), 16800)

	f.gateway.On("VerifySignature", body, "sig").Return(nil).Once()
	// dedup store down: the event is still processed
	f.dedup.On("ClaimWebhookEvent", mock.Anything, mock.Anything, time.Hour).Return(false, errors.New("connection refused")).Once()
	f.transactions.On("GetByID", mock.Anything, txn.ID).Return(txn, nil)
	f.bookings.On("GetByID", mock.Anything, b.ID).Return(b, nil).Once()
	f.transactions.On("MarkFailed", mock.Anything, txn.ID, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.UserID == b.ClientID && n.Type == domain.NotifPaymentFailed
	})).Return(true, nil).Once()

	require.NoError(t, f.service.HandleWebhook(context.Background(), body, "sig"))
	f.transactions.AssertExpectations(t)
	f.confirmer.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleWebhook_UnknownReference(t *testing.T) {
	f := newFixture()
	body := chargeBody(paystack.EventChargeSuccess, "T123456", 16800)

	f.gateway.On("VerifySignature", body, "sig").Return(nil).Once()
	f.dedup.On("ClaimWebhookEvent", mock.Anything, mock.Anything, time.Hour).Return(true, nil).Once()
	f.dedup.On("ReleaseWebhookEvent", mock.Anything, mock.Anything).Return(nil).Once()

	err := f.service.HandleWebhook(context.Background(), body, "sig")
	assert.True(t, errors.Is(err, ErrPaymentNotFound))
}

func TestHandleWebhook_OtherEventsIgnored(t *testing.T) {
	f := newFixture()
	body := []byte(`{"event":"transfer.success","data":{"reference":"x"}}`)
	f.gateway.On("VerifySignature", body, "sig").Return(nil).Once()

	require.NoError(t, f.service.HandleWebhook(context.Background(), body, "sig"))
	f.dedup.AssertNotCalled(t, "ClaimWebhookEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify(t *testing.T) {
	f := newFixture()
	b, txn := acceptedBooking()
	b.Status = domain.BookingStatusCancelled
	paidAt := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

	_, err := f.service.Verify(context.Background(), "not-a-uuid")
	assert.True(t, errors.Is(err, ErrPaymentNotFound))

	f.gateway.On("VerifyTransaction", mock.Anything, txn.ID.String()).
		Return(&paystack.Charge{Status: "success", Reference: txn.ID.String(), Amount: 16800, Currency: "ZAR", PaidAt: &paidAt}, nil).Once()
	f.transactions.On("GetByID", mock.Anything, txn.ID).Return(txn, nil)
	f.bookings.On("GetByID", mock.Anything, b.ID).Return(b, nil).Once()
	f.transactions.On("MarkPaid", mock.Anything, txn.ID, paidAt, mock.Anything).Return(true, nil).Once()
	// nobody recorded as responsible: the late payment goes back in full
	f.transactions.On("Settle", mock.Anything, txn.ID, domain.TransactionStatusRefunded,
		domain.Settlement{RefundAmount: 16800}).Return(true, nil).Once()

	got, err := f.service.Verify(context.Background(), txn.ID.String())
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)
	f.confirmer.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything)
	f.transactions.AssertExpectations(t)
}

func TestInitialize_PayFailPayAgain(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	b, txn := acceptedBooking()
	client := domain.Actor{ID: b.ClientID, Role: domain.RoleClient}
	checkout := &paystack.InitializeResponse{AuthorizationURL: "https://checkout.paystack.com/x", AccessCode: "x"}

	// first attempt
	f.bookings.On("GetByID", mock.Anything, b.ID).Return(b, nil)
	f.transactions.On("GetActiveByBooking", mock.Anything, b.ID).Return(txn, nil).Once()
	f.gateway.On("InitializeTransaction", mock.Anything, mock.MatchedBy(func(in paystack.InitializeRequest) bool {
		return in.Reference == txn.ID.String()
	})).Return(checkout, nil).Once()
	f.transactions.On("MarkProcessing", mock.Anything, txn.ID, txn.ID.String()).Return(nil).Once()

	_, err := f.service.Initialize(ctx, client, b.ID, "a@b.co")
	require.NoError(t, err)

	// the charge fails
	body := chargeBody(paystack.EventChargeFailed, txn.ID.String(), 16800)
	f.gateway.On("VerifySignature", body, "sig").Return(nil).Once()
	f.dedup.On("ClaimWebhookEvent", mock.Anything, mock.Anything, time.Hour).Return(true, nil).Once()
	f.transactions.On("GetByID", mock.Anything, txn.ID).Return(txn, nil).Once()
	f.transactions.On("MarkFailed", mock.Anything, txn.ID, mock.Anything).Return(true, nil).Once()
	failed := *txn
	failed.Status = domain.TransactionStatusFailed
	f.transactions.On("GetByID", mock.Anything, txn.ID).Return(&failed, nil).Once()
	require.NoError(t, f.service.HandleWebhook(ctx, body, "sig"))

	// second attempt gets a fresh transaction and reference
	var retry *domain.Transaction
	f.transactions.On("GetActiveByBooking", mock.Anything, b.ID).Return(&failed, nil).Once()
	f.transactions.On("Regenerate", mock.Anything, txn.ID, mock.MatchedBy(func(next *domain.Transaction) bool {
		retry = next
		return next.ID != txn.ID && next.BookingID == b.ID && next.Status == domain.TransactionStatusPending &&
			next.WorkerAmount == 15000 && next.PlatformFee == 1800 && next.TotalAmount == 16800 &&
			next.PlatformFeeBasisPoints == 1200
	})).Return(nil).Once()
	f.gateway.On("InitializeTransaction", mock.Anything, mock.MatchedBy(func(in paystack.InitializeRequest) bool {
		return retry != nil && in.Reference == retry.ID.String() && in.Amount == 16800
	})).Return(checkout, nil).Once()
	f.transactions.On("MarkProcessing", mock.Anything, mock.MatchedBy(func(id uuid.UUID) bool {
		return retry != nil && id == retry.ID
	}), mock.Anything).Return(nil).Once()

	second, err := f.service.Initialize(ctx, client, b.ID, "a@b.co")
	require.NoError(t, err)
	require.NotNil(t, retry)
	assert.Equal(t, retry.ID.String(), second.Reference)
	assert.NotEqual(t, txn.ID.String(), second.Reference)
	f.transactions.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

func TestInitialize_ConcurrentRetryAfterFailure(t *testing.T) {
	f := newFixture()
	b, txn := acceptedBooking()
	txn.Status = domain.TransactionStatusFailed

	f.bookings.On("GetByID", mock.Anything, b.ID).Return(b, nil).Once()
	f.transactions.On("GetActiveByBooking", mock.Anything, b.ID).Return(txn, nil).Once()
	f.transactions.On("Regenerate", mock.Anything, txn.ID, mock.Anything).Return(domain.ErrConcurrentModification).Once()

	_, err := f.service.Initialize(context.Background(), domain.Actor{ID: b.ClientID, Role: domain.RoleClient}, b.ID, "a@b.co")
	assert.True(t, errors.Is(err, domain.ErrConcurrentModification))
	f.gateway.AssertNotCalled(t, "InitializeTransaction", mock.Anything, mock.Anything)
}

// endedBooking is acceptedBooking moved to status at the given time, with checkout in flight.
func endedBooking(status domain.BookingStatus, at time.Time) (*domain.Booking, *domain.Transaction) {
	b, txn := acceptedBooking()
	b.Status = status
	b.UpdatedAt = at
	txn.Status = domain.TransactionStatusProcessing
	return b, txn
}

func TestHandleWebhook_PaymentAfterBookingEndedIsSettled(t *testing.T) {
	// scheduled 2026-11-02 09:00 in Johannesburg
	thirtyHoursBefore := time.Date(2026, 11, 1, 3, 0, 0, 0, domain.Location)
	tenHoursBefore := time.Date(2026, 11, 1, 23, 0, 0, 0, domain.Location)

	cases := []struct {
		name   string
		status domain.BookingStatus
		by     func(b *domain.Booking) *uuid.UUID
		at     time.Time
		want   domain.Settlement
		txn    domain.TransactionStatus
	}{
		{
			name: "client cancelled early", status: domain.BookingStatusCancelled,
			by: func(b *domain.Booking) *uuid.UUID { return &b.ClientID }, at: thirtyHoursBefore,
			want: domain.Settlement{RefundAmount: 15000, PlatformRetained: 1800}, txn: domain.TransactionStatusRefunded,
		},
		{
			name: "client cancelled late", status: domain.BookingStatusCancelled,
			by: func(b *domain.Booking) *uuid.UUID { return &b.ClientID }, at: tenHoursBefore,
			want: domain.Settlement{WorkerPayout: 15000, PlatformRetained: 1800}, txn: domain.TransactionStatusCompleted,
		},
		{
			name: "worker cancelled", status: domain.BookingStatusCancelled,
			by: func(b *domain.Booking) *uuid.UUID { return &b.WorkerID }, at: tenHoursBefore,
			want: domain.Settlement{RefundAmount: 16800}, txn: domain.TransactionStatusRefunded,
		},
		{
			name: "client reported worker absent", status: domain.BookingStatusNoShow,
			by: func(b *domain.Booking) *uuid.UUID { return &b.ClientID }, at: tenHoursBefore,
			want: domain.Settlement{RefundAmount: 16800}, txn: domain.TransactionStatusRefunded,
		},
		{
			name: "worker reported client absent", status: domain.BookingStatusNoShow,
			by: func(b *domain.Booking) *uuid.UUID { return &b.WorkerID }, at: tenHoursBefore,
			want: domain.Settlement{WorkerPayout: 15000, PlatformRetained: 1800}, txn: domain.TransactionStatusCompleted,
		},
		{
			name: "declined", status: domain.BookingStatusDeclined,
			by: func(b *domain.Booking) *uuid.UUID { return nil }, at: tenHoursBefore,
			want: domain.Settlement{RefundAmount: 16800}, txn: domain.TransactionStatusRefunded,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			b, txn := endedBooking(tc.status, tc.at)
			b.CancelledBy = tc.by(b)
			body := chargeBody(paystack.EventChargeSuccess, txn.ID.String(), 16800)

			f.gateway.On("VerifySignature", body, "sig").Return(nil).Once()
			f.dedup.On("ClaimWebhookEvent", mock.Anything, mock.Anything, time.Hour).Return(true, nil).Once()
			f.transactions.On("GetByID", mock.Anything, txn.ID).Return(txn, nil)
			f.bookings.On("GetByID", mock.Anything, b.ID).Return(b, nil).Once()
			f.transactions.On("MarkPaid", mock.Anything, txn.ID, mock.Anything, mock.Anything).Return(true, nil).Once()
			f.transactions.On("Settle", mock.Anything, txn.ID, tc.txn, tc.want).Return(true, nil).Once()

			require.NoError(t, f.service.HandleWebhook(context.Background(), body, "sig"))
			f.transactions.AssertExpectations(t)
			f.confirmer.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestHandleWebhook_SettlementFailureReleasesClaim(t *testing.T) {
	f := newFixture()
	b, txn := endedBooking(domain.BookingStatusCancelled, time.Date(2026, 11, 1, 3, 0, 0, 0, domain.Location))
	b.CancelledBy = &b.ClientID
	body := chargeBody(paystack.EventChargeSuccess, txn.ID.String(), 16800)
	key := "charge.success:" + txn.ID.String()

	f.gateway.On("VerifySignature", body, "sig").Return(nil).Once()
	f.dedup.On("ClaimWebhookEvent", mock.Anything, key, time.Hour).Return(true, nil).Once()
	f.transactions.On("GetByID", mock.Anything, txn.ID).Return(txn, nil).Once()
	f.bookings.On("GetByID", mock.Anything, b.ID).Return(b, nil).Once()
	f.transactions.On("MarkPaid", mock.Anything, txn.ID, mock.Anything, mock.Anything).Return(true, nil).Once()
	f.transactions.On("Settle", mock.Anything, txn.ID, mock.Anything, mock.Anything).
		Return(false, domain.StorageError("settle transaction", errors.New("conn reset"))).Once()
	f.dedup.On("ReleaseWebhookEvent", mock.Anything, key).Return(nil).Once()

	err := f.service.HandleWebhook(context.Background(), body, "sig")
	assert.True(t, errors.Is(err, domain.ErrStorageUnavailable))
	f.dedup.AssertExpectations(t)
}

func TestHandleWebhook_CancelledWhilePaying(t *testing.T) {
	f := newFixture()
	b, txn := acceptedBooking()
	txn.Status = domain.TransactionStatusProcessing
	cancelled := *b
	cancelled.Status = domain.BookingStatusCancelled
	cancelled.CancelledBy = &b.ClientID
	cancelled.UpdatedAt = time.Date(2026, 11, 1, 23, 0, 0, 0, domain.Location)
	body := chargeBody(paystack.EventChargeSuccess, txn.ID.String(), 16800)

	f.gateway.On("VerifySignature", body, "sig").Return(nil).Once()
	f.dedup.On("ClaimWebhookEvent", mock.Anything, mock.Anything, time.Hour).Return(true, nil).Once()
	f.transactions.On("GetByID", mock.Anything, txn.ID).Return(txn, nil)
	f.bookings.On("GetByID", mock.Anything, b.ID).Return(b, nil).Once()
	f.transactions.On("MarkPaid", mock.Anything, txn.ID, mock.Anything, mock.Anything).Return(true, nil).Once()
	f.confirmer.On("Confirm", mock.Anything, mock.Anything, b.ID).
		Return(nil, &domain.IllegalTransitionError{From: domain.BookingStatusCancelled, To: domain.BookingStatusConfirmed, Role: domain.RoleClient}).Once()
	f.bookings.On("GetByID", mock.Anything, b.ID).Return(&cancelled, nil).Once()
	f.transactions.On("Settle", mock.Anything, txn.ID, domain.TransactionStatusCompleted,
		domain.Settlement{WorkerPayout: 15000, PlatformRetained: 1800}).Return(true, nil).Once()

	require.NoError(t, f.service.HandleWebhook(context.Background(), body, "sig"))
	f.transactions.AssertExpectations(t)
	f.bookings.AssertExpectations(t)
}

func TestProcessRefunds(t *testing.T) {
	f := newFixture()
	ref1, ref2 := "ref-1", "ref-2"
	ok := domain.Transaction{ID: uuid.New(), Status: domain.TransactionStatusRefunded, RefundAmount: 7500, PaystackReference: &ref1}
	failing := domain.Transaction{ID: uuid.New(), Status: domain.TransactionStatusRefunded, RefundAmount: 16800, PaystackReference: &ref2}

	f.transactions.On("ListPendingRefunds", mock.Anything, 50).Return([]domain.Transaction{ok, failing}, nil).Once()
	f.gateway.On("ListRefunds", mock.Anything, "ref-1").Return([]paystack.Refund{{ID: 12, Status: "failed"}}, nil).Once()
	f.gateway.On("ListRefunds", mock.Anything, "ref-2").Return([]paystack.Refund{}, nil).Once()
	f.gateway.On("CreateRefund", mock.Anything, "ref-1", int64(7500), "refund-"+ok.ID.String()).Return(&paystack.Refund{ID: 99, Amount: 7500}, nil).Once()
	f.gateway.On("CreateRefund", mock.Anything, "ref-2", int64(16800), "refund-"+failing.ID.String()).Return(nil, errors.New("insufficient balance")).Once()
	f.transactions.On("SetRefundReference", mock.Anything, ok.ID, "99").Return(nil).Once()

	n, err := f.service.ProcessRefunds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.transactions.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

func TestProcessRefunds_RecordsRefundLeftUnrecorded(t *testing.T) {
	f := newFixture()
	ref := "ref-1"
	txn := domain.Transaction{ID: uuid.New(), Status: domain.TransactionStatusRefunded, RefundAmount: 7500, PaystackReference: &ref}

	// the refund was created on an earlier sweep but storing its id failed
	f.transactions.On("ListPendingRefunds", mock.Anything, 50).Return([]domain.Transaction{txn}, nil).Once()
	f.gateway.On("ListRefunds", mock.Anything, "ref-1").Return([]paystack.Refund{{ID: 99, Status: "pending", Amount: 7500}}, nil).Once()
	f.transactions.On("SetRefundReference", mock.Anything, txn.ID, "99").Return(nil).Once()

	n, err := f.service.ProcessRefunds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.gateway.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessRefunds_LookupFailureSkips(t *testing.T) {
	f := newFixture()
	ref := "ref-1"
	txn := domain.Transaction{ID: uuid.New(), Status: domain.TransactionStatusRefunded, RefundAmount: 7500, PaystackReference: &ref}

	f.transactions.On("ListPendingRefunds", mock.Anything, 50).Return([]domain.Transaction{txn}, nil).Once()
	f.gateway.On("ListRefunds", mock.Anything, "ref-1").Return(nil, errors.New("timeout")).Once()

	n, err := f.service.ProcessRefunds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	f.gateway.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
