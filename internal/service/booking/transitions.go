package booking

import "github.com/domestiq/bookingcore/internal/domain"

type edge struct {
	from domain.BookingStatus
	to   domain.BookingStatus
}

// transitions lists every legal move and the roles allowed to make it.
// Terminal statuses have no outgoing edges.
var transitions = map[edge][]domain.Role{
	{domain.BookingStatusPending, domain.BookingStatusAccepted}:     {domain.RoleWorker},
	{domain.BookingStatusPending, domain.BookingStatusDeclined}:     {domain.RoleWorker},
	{domain.BookingStatusPending, domain.BookingStatusCancelled}:    {domain.RoleClient},
	{domain.BookingStatusAccepted, domain.BookingStatusConfirmed}:   {domain.RoleClient},
	{domain.BookingStatusAccepted, domain.BookingStatusCancelled}:   {domain.RoleClient, domain.RoleWorker},
	{domain.BookingStatusConfirmed, domain.BookingStatusInProgress}: {domain.RoleWorker},
	{domain.BookingStatusConfirmed, domain.BookingStatusCancelled}:  {domain.RoleClient, domain.RoleWorker},
	{domain.BookingStatusInProgress, domain.BookingStatusCompleted}: {domain.RoleWorker},
	{domain.BookingStatusPending, domain.BookingStatusNoShow}:       noShowRoles,
	{domain.BookingStatusAccepted, domain.BookingStatusNoShow}:      noShowRoles,
	{domain.BookingStatusConfirmed, domain.BookingStatusNoShow}:     noShowRoles,
	{domain.BookingStatusInProgress, domain.BookingStatusNoShow}:    noShowRoles,
}

var noShowRoles = []domain.Role{domain.RoleClient, domain.RoleWorker, domain.RoleSystem}

// CanTransition reports whether role may move a booking from one status to another.
func CanTransition(from, to domain.BookingStatus, role domain.Role) bool {
	for _, r := range transitions[edge{from, to}] {
		if r == role {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses role may move a booking to from its current status.
func NextStatuses(from domain.BookingStatus, role domain.Role) []domain.BookingStatus {
	var out []domain.BookingStatus
	for _, to := range []domain.BookingStatus{
		domain.BookingStatusAccepted, domain.BookingStatusDeclined, domain.BookingStatusConfirmed,
		domain.BookingStatusInProgress, domain.BookingStatusCompleted, domain.BookingStatusCancelled,
		domain.BookingStatusNoShow,
	} {
		if CanTransition(from, to, role) {
			out = append(out, to)
		}
	}
	return out
}
