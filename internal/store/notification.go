package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/mealplan/internal/model"
	"github.com/dukerupert/mealplan/internal/notify"
)

// NotificationStore owns notifications and is the storage behind the
// windowed and cleanup jobs.
type NotificationStore struct {
	db *sql.DB
}

var (
	_ notify.Store            = (*NotificationStore)(nil)
	_ notify.NotificationSink = (*NotificationStore)(nil)
)

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

const notificationCols = `id, family_id, user_id, type, ref_id, is_read, created_at, read_at`

func scanNotification(scanner interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	var isRead int
	var readAt sql.NullTime
	err := scanner.Scan(&n.ID, &n.FamilyID, &n.UserID, &n.Type, &n.RefID, &isRead, &n.CreatedAt, &readAt)
	if err != nil {
		return nil, err
	}
	n.IsRead = isRead != 0
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	return &n, nil
}

func (s *NotificationStore) SelectDueSchedules(ctx context.Context, now time.Time, limit int) ([]model.ScheduledNotification, error) {
	return selectDueSchedules(ctx, s.db, now, limit)
}

func (s *NotificationStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx notify.Tx) error) error {
	return withTx(ctx, s.db, fn)
}

// InsertNotifications writes rows atomically outside of a job transaction.
func (s *NotificationStore) InsertNotifications(ctx context.Context, rows []model.Notification) (int, error) {
	var n int
	err := s.WithTx(ctx, func(ctx context.Context, tx notify.Tx) error {
		var err error
		n, err = tx.InsertNotifications(ctx, rows)
		return err
	})
	return n, err
}

func (s *NotificationStore) UpdateScheduleStatus(ctx context.Context, id int64, from, to model.ScheduleStatus) (bool, error) {
	return updateScheduleStatus(ctx, s.db, id, from, to)
}

func insertNotifications(ctx context.Context, q querier, rows []model.Notification) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	for i, n := range rows {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO notifications (family_id, user_id, type, ref_id, is_read, created_at)
			 VALUES (?, ?, ?, ?, 0, ?)`,
			n.FamilyID, n.UserID, n.Type, n.RefID, n.CreatedAt.UTC(),
		); err != nil {
			return i, fmt.Errorf("insert notification for user %d: %w", n.UserID, err)
		}
	}
	return len(rows), nil
}

// DeleteNotifications removes read rows older than p.ReadBefore and any row
// older than p.AnyBefore in one statement.
func (s *NotificationStore) DeleteNotifications(ctx context.Context, p model.NotificationPurge) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications
		 WHERE (is_read = 1 AND created_at < ?) OR created_at < ?`,
		p.ReadBefore.UTC(), p.AnyBefore.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return result.RowsAffected()
}

// DeleteSchedules removes finished schedules past their retention. PENDING
// rows are never touched.
func (s *NotificationStore) DeleteSchedules(ctx context.Context, p model.SchedulePurge) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM scheduled_notifications
		 WHERE (status = ? AND created_at < ?) OR (status = ? AND created_at < ?)`,
		model.ScheduleStatusDone, p.DoneBefore.UTC(),
		model.ScheduleStatusCanceled, p.CanceledBefore.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete schedules: %w", err)
	}
	return result.RowsAffected()
}

// ListForUser returns the user's notifications in a family, newest first.
func (s *NotificationStore) ListForUser(ctx context.Context, userID, familyID int64) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+notificationCols+` FROM notifications
		 WHERE user_id = ? AND family_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID, familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// MarkRead flags a notification as read by its recipient. Marking an already
// read notification keeps the original read_at.
func (s *NotificationStore) MarkRead(ctx context.Context, id, userID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1, read_at = ?
		 WHERE id = ? AND user_id = ? AND is_read = 0`,
		at.UTC(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (s *NotificationStore) UnreadCount(ctx context.Context, userID, familyID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND family_id = ? AND is_read = 0`,
		userID, familyID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// CountForRef counts notifications carrying refID, across all users.
func (s *NotificationStore) CountForRef(ctx context.Context, refID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE ref_id = ?`, refID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count notifications for ref: %w", err)
	}
	return count, nil
}
