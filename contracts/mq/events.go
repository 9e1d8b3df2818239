package mq

import "time"

// CurriculumAddedEvent is emitted by the course service when an instructor
// publishes new curriculum content. UserIDs lists the enrolled students to
// notify.
type CurriculumAddedEvent struct {
	EventID     string    `json:"event_id"`
	CourseID    string    `json:"course_id"`
	CourseTitle string    `json:"course_title"`
	LessonTitle string    `json:"lesson_title"`
	UserIDs     []string  `json:"user_ids"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EnrollmentCreatedEvent is emitted when a student enrolls in a course.
type EnrollmentCreatedEvent struct {
	EventID     string    `json:"event_id"`
	CourseID    string    `json:"course_id"`
	CourseTitle string    `json:"course_title"`
	UserID      string    `json:"user_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NotificationCreatedEvent is published after a notification row is stored.
type NotificationCreatedEvent struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Type           string    `json:"type,omitempty"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
}
