package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/mealplan/internal/model"
)

const day = 24 * time.Hour

// Retention holds the maximum ages used by the cleanup job.
type Retention struct {
	Read     time.Duration // read notifications
	Any      time.Duration // every notification, read or not
	Done     time.Duration // DONE schedules
	Canceled time.Duration // CANCELED schedules
}

// DefaultRetention is the production retention policy.
var DefaultRetention = Retention{
	Read:     20 * day,
	Any:      60 * day,
	Done:     14 * day,
	Canceled: 1 * day,
}

// CleanupResult reports the rows removed by one cleanup run.
type CleanupResult struct {
	DeletedNotifications int64 `json:"deleted_notifications"`
	DeletedSchedules     int64 `json:"deleted_schedules"`
}

// Cleanup deletes notifications and finished schedules past retention.
type Cleanup struct {
	store     Store
	retention Retention
	logger    *slog.Logger
	now       func() time.Time
}

// NewCleanup creates a cleanup job with the given retention policy.
func NewCleanup(store Store, retention Retention, logger *slog.Logger) *Cleanup {
	return &Cleanup{store: store, retention: retention, logger: logger, now: time.Now}
}

// Run deletes expired rows relative to now (zero means the current time).
// The first failing delete aborts the run.
func (c *Cleanup) Run(ctx context.Context, now time.Time) (CleanupResult, error) {
	if now.IsZero() {
		now = c.now()
	}
	now = now.UTC()

	var res CleanupResult
	n, err := c.store.DeleteNotifications(ctx, model.NotificationPurge{
		ReadBefore: now.Add(-c.retention.Read),
		AnyBefore:  now.Add(-c.retention.Any),
	})
	if err != nil {
		return res, fmt.Errorf("cleanup notifications: %w", err)
	}
	res.DeletedNotifications = n

	n, err = c.store.DeleteSchedules(ctx, model.SchedulePurge{
		DoneBefore:     now.Add(-c.retention.Done),
		CanceledBefore: now.Add(-c.retention.Canceled),
	})
	if err != nil {
		return res, fmt.Errorf("cleanup schedules: %w", err)
	}
	res.DeletedSchedules = n

	c.logger.Info("cleanup finished",
		"deleted_notifications", res.DeletedNotifications,
		"deleted_schedules", res.DeletedSchedules,
	)
	return res, nil
}
