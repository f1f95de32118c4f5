package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/mealplan/internal/model"
)

// ErrInvalidType is returned when a notification type code is not known.
var ErrInvalidType = errors.New("invalid notification type")

// Writer creates per-user notification rows and completes schedules.
type Writer struct {
	sink NotificationSink
	now  func() time.Time
}

// NewWriter creates a Writer on top of sink, which is usually a transaction.
func NewWriter(sink NotificationSink) *Writer {
	return &Writer{sink: sink, now: time.Now}
}

// CreateForUsers inserts one unread notification per distinct user. An empty
// user set creates nothing and is not an error.
func (w *Writer) CreateForUsers(ctx context.Context, users []int64, familyID int64, typ model.NotificationType, refID string) (int, error) {
	if !typ.Valid() {
		return 0, fmt.Errorf("create notifications: %w: %d", ErrInvalidType, typ)
	}
	if len(users) == 0 {
		return 0, nil
	}

	createdAt := w.now().UTC()
	seen := make(map[int64]struct{}, len(users))
	rows := make([]model.Notification, 0, len(users))
	for _, uid := range users {
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		rows = append(rows, model.Notification{
			FamilyID:  familyID,
			UserID:    uid,
			Type:      typ,
			RefID:     refID,
			CreatedAt: createdAt,
		})
	}

	n, err := w.sink.InsertNotifications(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("create notifications: %w", err)
	}
	return n, nil
}

// MarkScheduledDone moves a schedule from PENDING to DONE. On a schedule that
// is already DONE or CANCELED it does nothing and reports false.
func (w *Writer) MarkScheduledDone(ctx context.Context, scheduleID int64) (bool, error) {
	applied, err := w.sink.UpdateScheduleStatus(ctx, scheduleID, model.ScheduleStatusPending, model.ScheduleStatusDone)
	if err != nil {
		return false, fmt.Errorf("mark schedule %d done: %w", scheduleID, err)
	}
	return applied, nil
}
