package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/domestiq/bookingcore/internal/ledger"
	"github.com/domestiq/bookingcore/internal/service/booking"
	"github.com/domestiq/bookingcore/internal/service/payments"
	"github.com/domestiq/bookingcore/internal/service/statement"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockBookingUseCase is a mock implementation of booking.BookingUseCase
type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) result(args mock.Arguments) (*domain.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CreateBooking(ctx context.Context, actor domain.Actor, input booking.CreateBookingInput) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, input))
}

func (m *MockBookingUseCase) GetBooking(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, id))
}

func (m *MockBookingUseCase) ListBookings(ctx context.Context, actor domain.Actor, filter booking.ListFilter) ([]domain.Booking, error) {
	args := m.Called(ctx, actor, filter)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) GetTransaction(ctx context.Context, actor domain.Actor, bookingID uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, actor, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockBookingUseCase) QuoteFee(amount domain.Cents) (ledger.Quote, error) {
	args := m.Called(amount)
	return args.Get(0).(ledger.Quote), args.Error(1)
}

func (m *MockBookingUseCase) Transition(ctx context.Context, req booking.TransitionRequest) (*domain.Booking, error) {
	return m.result(m.Called(ctx, req))
}

func (m *MockBookingUseCase) Accept(ctx context.Context, actor domain.Actor, id uuid.UUID, quotedAmount *domain.Cents) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, id, quotedAmount))
}

func (m *MockBookingUseCase) Decline(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, id, reason))
}

func (m *MockBookingUseCase) Confirm(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, id))
}

func (m *MockBookingUseCase) Start(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, id))
}

func (m *MockBookingUseCase) Complete(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, id))
}

func (m *MockBookingUseCase) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, id, reason))
}

func (m *MockBookingUseCase) MarkNoShow(ctx context.Context, actor domain.Actor, id uuid.UUID, absent domain.Role, reason string) (*domain.Booking, error) {
	return m.result(m.Called(ctx, actor, id, absent, reason))
}

type MockPaymentUseCase struct {
	mock.Mock
}

func (m *MockPaymentUseCase) Initialize(ctx context.Context, actor domain.Actor, bookingID uuid.UUID, email string) (*payments.Checkout, error) {
	args := m.Called(ctx, actor, bookingID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Checkout), args.Error(1)
}

func (m *MockPaymentUseCase) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	return m.Called(ctx, body, signature).Error(0)
}

func (m *MockPaymentUseCase) Verify(ctx context.Context, reference string) (*domain.Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockPaymentUseCase) ProcessRefunds(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockNotificationUseCase struct {
	mock.Mock
}

func (m *MockNotificationUseCase) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]domain.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Notification), args.Error(1)
}

func (m *MockNotificationUseCase) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

func (m *MockNotificationUseCase) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockStatementUseCase struct {
	mock.Mock
}

func (m *MockStatementUseCase) Build(ctx context.Context, workerID uuid.UUID, from, to time.Time) (*statement.Statement, error) {
	args := m.Called(ctx, workerID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*statement.Statement), args.Error(1)
}

// newTestContext builds a request context as the auth middleware would leave it.
func newTestContext(method, target string, body any, actor *domain.Actor) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var r io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		r = bytes.NewReader(raw)
	}
	c.Request = httptest.NewRequest(method, target, r)
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		c.Set(actorKey, *actor)
	}
	return c, w
}

func decode(w *httptest.ResponseRecorder, dst any) error {
	return json.Unmarshal(w.Body.Bytes(), dst)
}
