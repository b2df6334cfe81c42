package notifications

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/domestiq/bookingcore/internal/repository"
	"github.com/google/uuid"
)

type NotificationUseCase interface {
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

// UnreadCache holds per-user unread counts. Cache failures never fail a request.
type UnreadCache interface {
	GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, bool, error)
	SetUnreadCount(ctx context.Context, userID uuid.UUID, n int64) error
	InvalidateUnreadCount(ctx context.Context, userIDs ...uuid.UUID) error
}

type NotificationService struct {
	repo  repository.NotificationRepository
	cache UnreadCache
}

func NewNotificationService(repo repository.NotificationRepository, cache UnreadCache) *NotificationService {
	return &NotificationService{repo: repo, cache: cache}
}

const maxListLimit = 100

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = 50
	}
	return s.repo.ListForUser(ctx, userID, unreadOnly, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	ok, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("notification %s: %w", id, domain.ErrNotFound)
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.cache != nil {
		n, ok, err := s.cache.GetUnreadCount(ctx, userID)
		if err != nil {
			log.Printf("WARNING: unread count cache read for %s: %v", userID, err)
		} else if ok {
			return n, nil
		}
	}

	n, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.SetUnreadCount(ctx, userID, n); err != nil {
			log.Printf("WARNING: unread count cache write for %s: %v", userID, err)
		}
	}
	return n, nil
}

func (s *NotificationService) invalidate(ctx context.Context, userIDs ...uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUnreadCount(ctx, userIDs...); err != nil {
		log.Printf("WARNING: unread count cache invalidation: %v", err)
	}
}

var _ NotificationUseCase = (*NotificationService)(nil)

// Publisher is the outbound side of the relay.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// Relay copies committed notifications to the message bus. Delivery is at least once:
// a row is marked dispatched only after its publish succeeded.
type Relay struct {
	repo      repository.NotificationRepository
	publisher Publisher
	cache     UnreadCache
	topic     string
	batchSize int
	now       func() time.Time
}

func NewRelay(repo repository.NotificationRepository, publisher Publisher, cache UnreadCache, topic string, batchSize int) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{repo: repo, publisher: publisher, cache: cache, topic: topic, batchSize: batchSize, now: time.Now}
}

// RelayOnce publishes one batch and returns how many notifications were dispatched.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	pending, err := r.repo.ListUndispatched(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	var (
		sent  []uuid.UUID
		users []uuid.UUID
		seen  = make(map[uuid.UUID]bool)
	)
	for _, n := range pending {
		if err := r.publisher.Publish(ctx, r.topic, n.UserID.String(), toMessage(n)); err != nil {
			log.Printf("WARNING: relay notification %s: %v", n.ID, err)
			break
		}
		sent = append(sent, n.ID)
		if !seen[n.UserID] {
			seen[n.UserID] = true
			users = append(users, n.UserID)
		}
	}

	if err := r.repo.MarkDispatched(ctx, sent, r.now().UTC()); err != nil {
		return 0, err
	}
	if r.cache != nil && len(users) > 0 {
		if err := r.cache.InvalidateUnreadCount(ctx, users...); err != nil {
			log.Printf("WARNING: unread count cache invalidation: %v", err)
		}
	}
	return len(sent), nil
}
