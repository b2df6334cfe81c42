package booking

import (
	"testing"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := []struct {
		from, to domain.BookingStatus
		role     domain.Role
	}{
		{domain.BookingStatusPending, domain.BookingStatusAccepted, domain.RoleWorker},
		{domain.BookingStatusPending, domain.BookingStatusDeclined, domain.RoleWorker},
		{domain.BookingStatusPending, domain.BookingStatusCancelled, domain.RoleClient},
		{domain.BookingStatusAccepted, domain.BookingStatusConfirmed, domain.RoleClient},
		{domain.BookingStatusAccepted, domain.BookingStatusCancelled, domain.RoleClient},
		{domain.BookingStatusAccepted, domain.BookingStatusCancelled, domain.RoleWorker},
		{domain.BookingStatusConfirmed, domain.BookingStatusInProgress, domain.RoleWorker},
		{domain.BookingStatusConfirmed, domain.BookingStatusCancelled, domain.RoleClient},
		{domain.BookingStatusConfirmed, domain.BookingStatusCancelled, domain.RoleWorker},
		{domain.BookingStatusInProgress, domain.BookingStatusCompleted, domain.RoleWorker},
		{domain.BookingStatusInProgress, domain.BookingStatusNoShow, domain.RoleSystem},
	}
	for _, tc := range legal {
		assert.Truef(t, CanTransition(tc.from, tc.to, tc.role), "%s -> %s by %s", tc.from, tc.to, tc.role)
	}

	assert.False(t, CanTransition(domain.BookingStatusPending, domain.BookingStatusAccepted, domain.RoleClient))
	assert.False(t, CanTransition(domain.BookingStatusPending, domain.BookingStatusCancelled, domain.RoleWorker))
	assert.False(t, CanTransition(domain.BookingStatusInProgress, domain.BookingStatusCancelled, domain.RoleClient))
	assert.False(t, CanTransition(domain.BookingStatusAccepted, domain.BookingStatusConfirmed, domain.RoleSystem))
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, s := range []domain.BookingStatus{
		domain.BookingStatusDeclined, domain.BookingStatusCompleted, domain.BookingStatusCancelled, domain.BookingStatusNoShow,
	} {
		assert.True(t, s.IsTerminal())
		for _, role := range []domain.Role{domain.RoleClient, domain.RoleWorker, domain.RoleSystem} {
			assert.Empty(t, NextStatuses(s, role))
		}
	}
}

func TestEveryNonTerminalStatusCanEndInNoShow(t *testing.T) {
	for _, s := range []domain.BookingStatus{
		domain.BookingStatusPending, domain.BookingStatusAccepted, domain.BookingStatusConfirmed, domain.BookingStatusInProgress,
	} {
		assert.Contains(t, NextStatuses(s, domain.RoleSystem), domain.BookingStatusNoShow)
	}
}
