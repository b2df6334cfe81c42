package repository

import (
	"context"
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type NotificationRepository interface {
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) (bool, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	ListUndispatched(ctx context.Context, limit int) ([]domain.Notification, error)
	MarkDispatched(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type PGNotificationRepository struct {
	db DB
}

func NewNotificationRepository(db DB) NotificationRepository {
	return &PGNotificationRepository{db: db}
}

const notificationColumns = `id, user_id, type, title, body, action_url, is_read, created_at, dispatched_at`

func (r *PGNotificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]domain.Notification, error) {
	rows, err := r.db.Query(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE user_id=$1 AND (NOT $2 OR is_read = false)
		ORDER BY created_at DESC LIMIT $3`, userID, unreadOnly, limit)
	if err != nil {
		return nil, domain.StorageError("list notifications", err)
	}
	return collectNotifications(rows)
}

func (r *PGNotificationRepository) MarkRead(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE notifications SET is_read=true WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return false, domain.StorageError("mark notification read", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGNotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE user_id=$1 AND is_read=false`, userID).Scan(&n); err != nil {
		return 0, domain.StorageError("count unread notifications", err)
	}
	return n, nil
}

func (r *PGNotificationRepository) ListUndispatched(ctx context.Context, limit int) ([]domain.Notification, error) {
	rows, err := r.db.Query(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE dispatched_at IS NULL ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, domain.StorageError("list undispatched notifications", err)
	}
	return collectNotifications(rows)
}

func (r *PGNotificationRepository) MarkDispatched(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	if _, err := r.db.Exec(ctx, `UPDATE notifications SET dispatched_at=$1 WHERE id = ANY($2::uuid[]) AND dispatched_at IS NULL`, at, keys); err != nil {
		return domain.StorageError("mark notifications dispatched", err)
	}
	return nil
}

func insertNotification(ctx context.Context, tx pgx.Tx, n *domain.Notification) error {
	if _, err := tx.Exec(ctx, `INSERT INTO notifications (id, user_id, type, title, body, action_url, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Body, n.ActionURL, n.CreatedAt); err != nil {
		return domain.StorageError("insert notification", err)
	}
	return nil
}

func collectNotifications(rows pgx.Rows) ([]domain.Notification, error) {
	defer rows.Close()

	out := make([]domain.Notification, 0)
	for rows.Next() {
		var (
			n     domain.Notification
			ntype string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &ntype, &n.Title, &n.Body, &n.ActionURL, &n.IsRead, &n.CreatedAt, &n.DispatchedAt); err != nil {
			return nil, domain.StorageError("scan notification", err)
		}
		n.Type = domain.NotificationType(ntype)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("list notifications", err)
	}
	return out, nil
}

var _ NotificationRepository = (*PGNotificationRepository)(nil)
