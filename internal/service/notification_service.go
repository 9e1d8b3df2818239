package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	mqcontracts "learnhub/contracts/mq"
	"learnhub/internal/model"
	"learnhub/internal/repository"
	"learnhub/pkg/metrics"
)

// Store is the persistence layer the service drives.
type Store interface {
	Insert(ctx context.Context, n *model.Notification) error
	ListByUser(ctx context.Context, userID string) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, id string) (*model.Notification, error)
	Delete(ctx context.Context, userID, id string) (*model.Notification, error)
}

// Publisher emits events after state changes. Publishing is best-effort:
// a failed publish never rolls back the stored row.
type Publisher interface {
	Publish(routingKey string, payload any) error
}

type CreateInput struct {
	UserID  string `json:"userId"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Link    string `json:"link"`
	Source  string `json:"-"` // api, curriculum, enrollment
}

type NotificationService struct {
	store     Store
	publisher Publisher
	logger    *zap.Logger
}

func NewNotificationService(store Store, publisher Publisher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Create validates the input and stores a new unread notification.
func (s *NotificationService) Create(ctx context.Context, in CreateInput) (*model.Notification, error) {
	var missing []string
	if strings.TrimSpace(in.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	n := &model.Notification{
		UserID:  in.UserID,
		Title:   in.Title,
		Message: in.Message,
		Type:    in.Type,
		Link:    in.Link,
	}
	if err := s.store.Insert(ctx, n); err != nil {
		return nil, &StorageError{Op: "create", Err: err}
	}

	source := in.Source
	if source == "" {
		source = "api"
	}
	metrics.IncrementNotificationCreated(source)

	if err := s.publisher.Publish("notification.created", mqcontracts.NotificationCreatedEvent{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Title:          n.Title,
		CreatedAt:      n.CreatedAt,
	}); err != nil {
		// The row is stored; downstream consumers catch up on the next event.
		s.logger.Error("Failed to publish notification.created",
			zap.String("notification_id", n.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("Notification created",
		zap.String("notification_id", n.ID),
		zap.String("user_id", n.UserID),
		zap.String("source", source),
	)
	return n, nil
}

// ListByUser returns the user's notifications newest first. An unknown
// user yields an empty list, not an error.
func (s *NotificationService) ListByUser(ctx context.Context, userID string) ([]model.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &ValidationError{Fields: []string{"userId"}}
	}

	notifications, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return notifications, nil
}

// MarkRead marks the user's notification as read. Idempotent: re-marking
// an already-read notification returns the same final state.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*model.Notification, error) {
	n, err := s.store.MarkRead(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, &StorageError{Op: "mark_read", Err: err}
	}

	metrics.IncrementNotificationRead()
	return n, nil
}

// Delete removes the user's notification permanently and returns the row
// as it was before deletion.
func (s *NotificationService) Delete(ctx context.Context, userID, id string) (*model.Notification, error) {
	n, err := s.store.Delete(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, &StorageError{Op: "delete", Err: err}
	}

	metrics.IncrementNotificationDeleted()
	s.logger.Info("Notification deleted",
		zap.String("notification_id", id),
		zap.String("user_id", userID),
	)
	return n, nil
}
