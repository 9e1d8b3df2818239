package mqhandler

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	mqcontracts "learnhub/contracts/mq"
	"learnhub/internal/service"
)

// EnrollmentCreatedHandler turns enrollment.created events into an
// enrollment-confirmed notification for the student.
type EnrollmentCreatedHandler struct {
	svc        notificationCreator
	deduper    eventDeduper
	retries    retryCounter
	maxRetries int64
	logger     *zap.Logger
}

func NewEnrollmentCreatedHandler(
	svc notificationCreator,
	deduper eventDeduper,
	retries retryCounter,
	maxRetries int64,
	logger *zap.Logger,
) *EnrollmentCreatedHandler {
	return &EnrollmentCreatedHandler{
		svc:        svc,
		deduper:    deduper,
		retries:    retries,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (h *EnrollmentCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var e mqcontracts.EnrollmentCreatedEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		h.logger.Error("Failed to unmarshal EnrollmentCreatedEvent", zap.Error(err))
		return nil
	}

	h.logger.Info("Handling enrollment.created event",
		zap.String("event_id", e.EventID),
		zap.String("course_id", e.CourseID),
		zap.String("user_id", e.UserID),
	)

	if !h.deduper.AcquireOnce(ctx, "enrollment_created", e.EventID) {
		return nil
	}

	_, err := h.svc.Create(ctx, service.CreateInput{
		UserID:  e.UserID,
		Title:   "Enrollment confirmed",
		Message: "You are enrolled in " + e.CourseTitle + ".",
		Type:    "enrollment",
		Link:    "/courses/" + e.CourseID,
		Source:  "enrollment",
	})
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			h.logger.Warn("Dropping invalid enrollment.created event",
				zap.String("event_id", e.EventID),
				zap.Error(err),
			)
			return nil
		}
		h.logger.Error("Failed to create enrollment notification",
			zap.String("event_id", e.EventID),
			zap.String("user_id", e.UserID),
			zap.Error(err),
		)
		h.deduper.Release(ctx, "enrollment_created", e.EventID)
		return classifyForRetry(ctx, h.retries, h.maxRetries, h.logger, "enrollment_created", e.EventID, err)
	}

	return nil
}
