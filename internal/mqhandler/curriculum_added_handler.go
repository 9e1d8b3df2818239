package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "learnhub/contracts/mq"
	"learnhub/internal/model"
	"learnhub/internal/service"
	"learnhub/pkg/util"
)

// notificationCreator is what the MQ handlers need from the service layer.
type notificationCreator interface {
	Create(ctx context.Context, in service.CreateInput) (*model.Notification, error)
}

// eventDeduper guards against redelivered events being processed twice.
type eventDeduper interface {
	AcquireOnce(ctx context.Context, handler, eventKey string) bool
	Release(ctx context.Context, handler, eventKey string)
}

// retryCounter tracks redelivery attempts per event.
type retryCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
}

// CurriculumAddedHandler turns curriculum.added events into one
// notification per enrolled student.
type CurriculumAddedHandler struct {
	svc        notificationCreator
	deduper    eventDeduper
	retries    retryCounter
	maxRetries int64
	logger     *zap.Logger
}

func NewCurriculumAddedHandler(
	svc notificationCreator,
	deduper eventDeduper,
	retries retryCounter,
	maxRetries int64,
	logger *zap.Logger,
) *CurriculumAddedHandler {
	return &CurriculumAddedHandler{
		svc:        svc,
		deduper:    deduper,
		retries:    retries,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (h *CurriculumAddedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var e mqcontracts.CurriculumAddedEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		// Malformed payloads never get better on redelivery. Drop them.
		h.logger.Error("Failed to unmarshal CurriculumAddedEvent", zap.Error(err))
		return nil
	}

	h.logger.Info("Handling curriculum.added event",
		zap.String("event_id", e.EventID),
		zap.String("course_id", e.CourseID),
		zap.Int("user_count", len(e.UserIDs)),
	)

	var firstErr error
	for _, userID := range e.UserIDs {
		// Per-user dedup key: a partially processed event can be
		// redelivered without double-notifying the users already done.
		if !h.deduper.AcquireOnce(ctx, "curriculum_added", e.EventID+":"+userID) {
			continue
		}

		_, err := h.svc.Create(ctx, service.CreateInput{
			UserID:  userID,
			Title:   "New lesson in " + e.CourseTitle,
			Message: fmt.Sprintf("%q was added to %s.", e.LessonTitle, e.CourseTitle),
			Type:    "curriculum_added",
			Link:    "/courses/" + e.CourseID + "/curriculum",
			Source:  "curriculum",
		})
		if err != nil {
			var verr *service.ValidationError
			if errors.As(err, &verr) {
				h.logger.Warn("Skipping invalid curriculum.added target",
					zap.String("event_id", e.EventID),
					zap.String("user_id", userID),
					zap.Error(err),
				)
				continue
			}
			h.logger.Error("Failed to create curriculum notification",
				zap.String("event_id", e.EventID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
			// Free the dedup key so a redelivery retries this user.
			h.deduper.Release(ctx, "curriculum_added", e.EventID+":"+userID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr != nil {
		return classifyForRetry(ctx, h.retries, h.maxRetries, h.logger, "curriculum_added", e.EventID, firstErr)
	}
	return nil
}

// classifyForRetry decides between redelivery and dropping. Shared by
// both producer-event handlers.
func classifyForRetry(
	ctx context.Context,
	retries retryCounter,
	maxRetries int64,
	logger *zap.Logger,
	handler, eventID string,
	err error,
) error {
	retryable, errType := util.IsRetryableError(err)
	if !retryable {
		logger.Warn("Dropping event after non-retryable error",
			zap.String("handler", handler),
			zap.String("event_id", eventID),
			zap.String("error_type", errType),
			zap.Error(err),
		)
		return nil
	}

	count, cerr := retries.IncrementAndGet(ctx, util.FormatRetryKey(handler, eventID))
	if cerr != nil {
		// Counter unavailable: keep retrying rather than dropping.
		logger.Warn("Retry counter unavailable", zap.Error(cerr))
		return err
	}
	if count > maxRetries {
		logger.Error("Giving up on event after max retries",
			zap.String("handler", handler),
			zap.String("event_id", eventID),
			zap.Int64("attempts", count),
			zap.Error(err),
		)
		return nil
	}

	return err
}
