package notify

import (
	"context"
	"time"

	"github.com/dukerupert/mealplan/internal/model"
)

// Store is the storage surface consumed by the windowed job and the cleanup
// job.
type Store interface {
	// SelectDueSchedules returns PENDING schedules with due_at <= now,
	// oldest first, at most limit rows.
	SelectDueSchedules(ctx context.Context, now time.Time, limit int) ([]model.ScheduledNotification, error)

	// WithTx runs fn inside a single transaction. The transaction commits
	// only if fn returns nil.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	DeleteNotifications(ctx context.Context, p model.NotificationPurge) (int64, error)
	DeleteSchedules(ctx context.Context, p model.SchedulePurge) (int64, error)
}

// Tx is the unit of work used to process one schedule.
type Tx interface {
	ResolveFamilyMembers(ctx context.Context, familyID int64) ([]int64, error)
	NotificationSink
}

// NotificationSink is what the Writer needs from storage.
type NotificationSink interface {
	InsertNotifications(ctx context.Context, rows []model.Notification) (int, error)

	// UpdateScheduleStatus moves a schedule from one status to another and
	// reports whether the row was in the from state.
	UpdateScheduleStatus(ctx context.Context, id int64, from, to model.ScheduleStatus) (bool, error)
}

// Lease is an optional cross-process guard for the runner.
type Lease interface {
	Acquire(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, holder string) error
}
