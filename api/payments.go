package api

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/domestiq/bookingcore/internal/service/payments"
	"github.com/gin-gonic/gin"
)

const (
	signatureHeader = "X-Paystack-Signature"
	maxWebhookBody  = 1 << 20
)

type PaymentHandler struct {
	service payments.PaymentUseCase
}

type initializePaymentRequest struct {
	Email string `json:"email" binding:"required"`
}

func NewPaymentHandler(service payments.PaymentUseCase) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Register mounts the client checkout route on the authenticated bookings group.
func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("/:id/payment", RequireRole(domain.RoleClient), h.initialize)
}

// RegisterPublic mounts the routes Paystack calls. They are authenticated by signature or
// reference, not by bearer token.
func (h *PaymentHandler) RegisterPublic(router *gin.Engine) {
	router.POST("/webhooks/paystack", h.webhook)
	router.GET("/payments/callback", h.callback)
}

func (h *PaymentHandler) initialize(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req initializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	checkout, err := h.service.Initialize(c.Request.Context(), actor, id, req.Email)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkout)
}

// webhook acknowledges events that can never succeed so Paystack stops redelivering them.
// Transient failures answer 5xx and are retried.
func (h *PaymentHandler) webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "unreadable body", nil)
		return
	}

	err = h.service.HandleWebhook(c.Request.Context(), body, c.GetHeader(signatureHeader))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, payments.ErrPaymentMismatch), errors.Is(err, payments.ErrPaymentNotFound):
		log.Printf("WARNING: request_id=%s paystack webhook rejected: %v", GetRequestID(c), err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	default:
		RespondDomainError(c, err)
	}
}

func (h *PaymentHandler) callback(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		reference = c.Query("trxref")
	}
	if reference == "" {
		respondError(c, http.StatusBadRequest, "validation_error", "reference is required", nil)
		return
	}

	t, err := h.service.Verify(c.Request.Context(), reference)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionResponse(t))
}
