package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestObserveTransition(t *testing.T) {
	before := testutil.ToFloat64(bookingTransition.WithLabelValues("accepted", "ok"))
	ObserveTransition("accepted", "ok", time.Now())
	assert.Equal(t, before+1, testutil.ToFloat64(bookingTransition.WithLabelValues("accepted", "ok")))
}

func TestAddRefundIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(refundAmount)
	AddRefund(0)
	AddRefund(7500)
	assert.Equal(t, before+7500, testutil.ToFloat64(refundAmount))
}
