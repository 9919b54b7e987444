package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/careops-api/internal/model"
	"github.com/jwalitptl/careops-api/internal/repository"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

const notificationColumns = `id, tenant_id, user_id, channel, priority, category, subject, content,
	recipient, status, retry_count, last_error, next_retry_at, sent_at, read_at, created_at, updated_at`

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	now := time.Now().UTC()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = now
	n.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.TenantID, n.UserID, n.Channel, n.Priority, n.Category, n.Subject, n.Content,
		n.Recipient, n.Status, n.RetryCount, n.LastError, n.NextRetryAt, n.SentAt, n.ReadAt,
		n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Update(ctx context.Context, n *model.Notification) error {
	query := `
		UPDATE notifications
		SET status = $1, retry_count = $2, last_error = $3, next_retry_at = $4, sent_at = $5, updated_at = $6
		WHERE tenant_id = $7 AND id = $8
	`
	n.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, query,
		n.Status, n.RetryCount, n.LastError, n.NextRetryAt, n.SentAt, n.UpdatedAt, n.TenantID, n.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return expectOne(res, repository.ErrNotFound)
}

func (r *notificationRepository) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE tenant_id = $1 AND id = $2`

	var n model.Notification
	if err := r.db.GetContext(ctx, &n, query, tenantID, id); err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", notFound(err))
	}
	return &n, nil
}

// ListDueRetries spans tenants, it is only called by the worker
func (r *notificationRepository) ListDueRetries(ctx context.Context, now time.Time, limit int) ([]*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE status = $1 AND next_retry_at <= $2
		ORDER BY next_retry_at
		LIMIT $3`

	var out []*model.Notification
	if err := r.db.SelectContext(ctx, &out, query, model.NotificationStatusRetrying, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list due notifications: %w", err)
	}
	return out, nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, tenantID, userID uuid.UUID, unreadOnly bool, limit int) ([]*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE tenant_id = $1 AND user_id = $2`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT $3`

	var out []*model.Notification
	if err := r.db.SelectContext(ctx, &out, query, tenantID, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, tenantID, id, userID uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, $1), updated_at = $1
		WHERE tenant_id = $2 AND id = $3 AND user_id = $4
	`, at, tenantID, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return expectOne(res, repository.ErrNotFound)
}
