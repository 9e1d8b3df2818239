package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"learnhub/internal/model"
	"learnhub/pkg/metrics"
)

// ErrNotFound is returned when a notification id does not exist (or the
// row belongs to a different user, which callers must not distinguish).
var ErrNotFound = errors.New("notification not found")

type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores a new notification, generating its id. The created row's
// id and created_at are written back into n.
func (r *NotificationRepository) Insert(ctx context.Context, n *model.Notification) error {
	n.ID = uuid.New().String()
	n.IsRead = false

	r.logger.Debug("Inserting notification",
		zap.String("id", n.ID),
		zap.String("user_id", n.UserID),
		zap.String("type", n.Type),
	)

	query := `
        INSERT INTO notifications (id, user_id, title, message, type, link, is_read)
        VALUES ($1, $2, $3, $4, $5, $6, FALSE)
        RETURNING created_at
    `
	start := time.Now()
	err := r.db.QueryRow(ctx, query, n.ID, n.UserID, n.Title, n.Message, n.Type, n.Link).Scan(&n.CreatedAt)
	metrics.RecordDBQueryDuration("insert", "notifications", time.Since(start))
	if err != nil {
		r.logger.Error("Failed to insert notification", zap.Error(err))
		return err
	}

	r.logger.Info("Notification inserted successfully",
		zap.String("id", n.ID),
		zap.String("user_id", n.UserID),
	)
	return nil
}

// ListByUser returns the user's notifications newest first. Equal
// timestamps are tie-broken by id so repeated calls return a stable order.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]model.Notification, error) {
	query := `
        SELECT id, user_id, title, message, type, link, is_read, created_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
    `
	start := time.Now()
	rows, err := r.db.Query(ctx, query, userID)
	metrics.RecordDBQueryDuration("select", "notifications", time.Since(start))
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	notifications := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Title,
			&n.Message,
			&n.Type,
			&n.Link,
			&n.IsRead,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}

// MarkRead flips is_read to true for the user's notification and returns
// the updated row. Marking an already-read notification is a no-op.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string) (*model.Notification, error) {
	query := `
        UPDATE notifications
        SET is_read = TRUE
        WHERE id = $1 AND user_id = $2
        RETURNING id, user_id, title, message, type, link, is_read, created_at
    `
	start := time.Now()
	n, err := r.scanRow(r.db.QueryRow(ctx, query, id, userID))
	metrics.RecordDBQueryDuration("update", "notifications", time.Since(start))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to mark notification read", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return n, nil
}

// Delete removes the user's notification permanently and returns the row
// as it was before deletion.
func (r *NotificationRepository) Delete(ctx context.Context, userID, id string) (*model.Notification, error) {
	query := `
        DELETE FROM notifications
        WHERE id = $1 AND user_id = $2
        RETURNING id, user_id, title, message, type, link, is_read, created_at
    `
	start := time.Now()
	n, err := r.scanRow(r.db.QueryRow(ctx, query, id, userID))
	metrics.RecordDBQueryDuration("delete", "notifications", time.Since(start))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to delete notification", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	r.logger.Info("Notification deleted", zap.String("id", id), zap.String("user_id", userID))
	return n, nil
}

func (r *NotificationRepository) scanRow(row pgx.Row) (*model.Notification, error) {
	var n model.Notification
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Title,
		&n.Message,
		&n.Type,
		&n.Link,
		&n.IsRead,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
