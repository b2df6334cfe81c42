package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/domestiq/bookingcore/internal/service/payments"
	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	c.JSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: GetRequestID(c),
	})
}

// statusFor maps service errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, domain.ErrAmountImmutable):
		return http.StatusConflict, "amount_immutable"
	case domain.IsValidation(err), errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, payments.ErrPaymentNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrNotParticipant):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrPaymentRequired), errors.Is(err, payments.ErrAlreadyPaid),
		errors.Is(err, payments.ErrPaymentMismatch):
		return http.StatusPaymentRequired, "payment_error"
	case errors.Is(err, payments.ErrGateway):
		return http.StatusBadGateway, "payment_error"
	case errors.Is(err, payments.ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid_signature"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// RespondDomainError maps service errors to HTTP responses. Causes of 5xx are logged, not
// returned.
func RespondDomainError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Printf("request_id=%s %s %s: %v", GetRequestID(c), c.Request.Method, c.Request.URL.Path, err)
		msg = http.StatusText(status)
	}
	respondError(c, status, code, msg, nil)
}
