package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/domestiq/bookingcore/internal/ledger"
	"github.com/domestiq/bookingcore/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type acceptRequest struct {
	TotalAmount *domain.Cents `json:"total_amount"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type noShowRequest struct {
	AbsentParty domain.Role `json:"absent_party"`
	Reason      string      `json:"reason"`
}

type bookingListResponse struct {
	Bookings []booking.BookingView `json:"bookings"`
	Limit    int                   `json:"limit"`
	Offset   int                   `json:"offset"`
}

type transactionResponse struct {
	ID                 uuid.UUID                `json:"id"`
	BookingID          uuid.UUID                `json:"booking_id"`
	WorkerAmount       int64                    `json:"worker_amount"`
	PlatformFee        int64                    `json:"platform_fee"`
	TotalAmount        int64                    `json:"total_amount"`
	PlatformFeePercent float64                  `json:"platform_fee_percent"`
	Status             domain.TransactionStatus `json:"status"`
	PaidAt             *string                  `json:"paid_at,omitempty"`
	RefundAmount       int64                    `json:"refund_amount"`
	WorkerPayout       int64                    `json:"worker_payout"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", RequireRole(domain.RoleClient), h.create)
	router.GET("", h.list)
	router.GET("/:id", h.get)
	router.GET("/:id/transaction", h.transaction)
	router.POST("/:id/accept", RequireRole(domain.RoleWorker), h.accept)
	router.POST("/:id/decline", RequireRole(domain.RoleWorker), h.decline)
	router.POST("/:id/confirm", RequireRole(domain.RoleClient), h.confirm)
	router.POST("/:id/start", RequireRole(domain.RoleWorker), h.start)
	router.POST("/:id/complete", h.complete)
	router.POST("/:id/cancel", h.cancel)
	router.POST("/:id/no-show", h.noShow)
}

// RegisterQuote exposes the fee calculator.
func (h *BookingHandler) RegisterQuote(router *gin.RouterGroup) {
	router.GET("/quote", h.quote)
}

func (h *BookingHandler) create(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req booking.CreateBookingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), actor, req)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking.ViewFor(actor, b))
}

func (h *BookingHandler) list(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	filter := booking.ListFilter{Limit: 20}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st, err := domain.ParseBookingStatus(strings.TrimSpace(s))
			if err != nil {
				respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}
	var err error
	if filter.Limit, err = queryInt(c, "limit", filter.Limit); err != nil || filter.Limit < 1 || filter.Limit > 100 {
		respondError(c, http.StatusBadRequest, "validation_error", "limit: must be between 1 and 100", nil)
		return
	}
	if filter.Offset, err = queryInt(c, "offset", 0); err != nil || filter.Offset < 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "offset: must be >= 0", nil)
		return
	}

	bookings, err := h.service.ListBookings(c.Request.Context(), actor, filter)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	resp := bookingListResponse{Bookings: make([]booking.BookingView, 0, len(bookings)), Limit: filter.Limit, Offset: filter.Offset}
	for i := range bookings {
		resp.Bookings = append(resp.Bookings, booking.ViewFor(actor, &bookings[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) get(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	b, err := h.service.GetBooking(c.Request.Context(), actor, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking.ViewFor(actor, b))
}

func (h *BookingHandler) transaction(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	t, err := h.service.GetTransaction(c.Request.Context(), actor, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionResponse(t))
}

func (h *BookingHandler) accept(c *gin.Context) {
	var req acceptRequest
	if !bindOptional(c, &req) {
		return
	}
	h.transition(c, func(actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
		return h.service.Accept(c.Request.Context(), actor, id, req.TotalAmount)
	})
}

func (h *BookingHandler) decline(c *gin.Context) {
	var req reasonRequest
	if !bindOptional(c, &req) {
		return
	}
	h.transition(c, func(actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
		return h.service.Decline(c.Request.Context(), actor, id, req.Reason)
	})
}

func (h *BookingHandler) confirm(c *gin.Context) {
	h.transition(c, func(actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
		return h.service.Confirm(c.Request.Context(), actor, id)
	})
}

func (h *BookingHandler) start(c *gin.Context) {
	h.transition(c, func(actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
		return h.service.Start(c.Request.Context(), actor, id)
	})
}

func (h *BookingHandler) complete(c *gin.Context) {
	h.transition(c, func(actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
		return h.service.Complete(c.Request.Context(), actor, id)
	})
}

func (h *BookingHandler) cancel(c *gin.Context) {
	var req reasonRequest
	if !bindOptional(c, &req) {
		return
	}
	h.transition(c, func(actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
		return h.service.Cancel(c.Request.Context(), actor, id, req.Reason)
	})
}

func (h *BookingHandler) noShow(c *gin.Context) {
	var req noShowRequest
	if !bindOptional(c, &req) {
		return
	}
	h.transition(c, func(actor domain.Actor, id uuid.UUID) (*domain.Booking, error) {
		return h.service.MarkNoShow(c.Request.Context(), actor, id, req.AbsentParty, req.Reason)
	})
}

// transition runs one lifecycle move. A conflict answers with the booking as it is now so
// the caller can refresh without another round trip.
func (h *BookingHandler) transition(c *gin.Context, move func(domain.Actor, uuid.UUID) (*domain.Booking, error)) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	b, err := move(actor, id)
	if err == nil {
		c.JSON(http.StatusOK, booking.ViewFor(actor, b))
		return
	}
	if !errors.Is(err, domain.ErrIllegalTransition) && !errors.Is(err, domain.ErrConcurrentModification) {
		RespondDomainError(c, err)
		return
	}

	status, code := statusFor(err)
	current, gerr := h.service.GetBooking(c.Request.Context(), actor, id)
	if gerr != nil {
		respondError(c, status, code, err.Error(), nil)
		return
	}
	respondError(c, status, code, err.Error(), gin.H{
		"current_status": current.Status,
		"booking":        booking.ViewFor(actor, current),
	})
}

// quote takes amount in cents, or rand as a decimal rand value ("150.50").
func (h *BookingHandler) quote(c *gin.Context) {
	var (
		amount domain.Cents
		err    error
	)
	if raw := c.Query("rand"); raw != "" {
		amount, err = domain.ParseRand(raw)
	} else {
		var n int64
		n, err = strconv.ParseInt(c.Query("amount"), 10, 64)
		amount = domain.Cents(n)
	}
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "amount: must be a whole number of cents", nil)
		return
	}

	q, err := h.service.QuoteFee(amount)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, quoteResponse(q))
}

func quoteResponse(q ledger.Quote) gin.H {
	return gin.H{
		"worker_amount":         q.WorkerAmount,
		"platform_fee":          q.PlatformFee,
		"total_amount":          q.TotalAmount,
		"fee_basis_points":      q.FeeBasisPoints,
		"worker_amount_display": q.WorkerAmount.String(),
		"platform_fee_display":  q.PlatformFee.String(),
		"total_amount_display":  q.TotalAmount.String(),
	}
}

func toTransactionResponse(t *domain.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:                 t.ID,
		BookingID:          t.BookingID,
		WorkerAmount:       int64(t.WorkerAmount),
		PlatformFee:        int64(t.PlatformFee),
		TotalAmount:        int64(t.TotalAmount),
		PlatformFeePercent: t.PlatformFeePercent(),
		Status:             t.Status,
		RefundAmount:       int64(t.RefundAmount),
		WorkerPayout:       int64(t.WorkerPayout),
	}
	if t.PaidAt != nil {
		s := t.PaidAt.UTC().Format(time.RFC3339)
		resp.PaidAt = &s
	}
	return resp
}

// bindOptional accepts an empty body.
func bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
