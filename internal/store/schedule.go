package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/mealplan/internal/model"
	"github.com/dukerupert/mealplan/internal/notify"
)

// ScheduleStore manages scheduled_notifications rows for collaborators that
// create and cancel schedules.
type ScheduleStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db, now: time.Now}
}

const scheduleCols = `id, family_id, type, ref_id, due_at, status, created_at`

func scanSchedule(scanner interface{ Scan(...any) error }) (*model.ScheduledNotification, error) {
	var s model.ScheduledNotification
	err := scanner.Scan(&s.ID, &s.FamilyID, &s.Type, &s.RefID, &s.DueAt, &s.Status, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a PENDING schedule. A zero CreatedAt is set to the current
// time; ID and Status on the argument are ignored.
func (s *ScheduleStore) Create(ctx context.Context, sched model.ScheduledNotification) (*model.ScheduledNotification, error) {
	if !sched.Type.Valid() {
		return nil, fmt.Errorf("create schedule: %w: %d", notify.ErrInvalidType, sched.Type)
	}
	if sched.CreatedAt.IsZero() {
		sched.CreatedAt = s.now()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_notifications (family_id, type, ref_id, due_at, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sched.FamilyID, sched.Type, sched.RefID, sched.DueAt.UTC(), model.ScheduleStatusPending, sched.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ScheduleStore) GetByID(ctx context.Context, id int64) (*model.ScheduledNotification, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleCols+` FROM scheduled_notifications WHERE id = ?`, id)
	sched, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sched, nil
}

func (s *ScheduleStore) ListByFamily(ctx context.Context, familyID int64) ([]model.ScheduledNotification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleCols+` FROM scheduled_notifications WHERE family_id = ? ORDER BY due_at ASC, id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

// Cancel moves a PENDING schedule to CANCELED. It reports false, without an
// error, when the schedule is missing or already finished.
func (s *ScheduleStore) Cancel(ctx context.Context, id int64) (bool, error) {
	return updateScheduleStatus(ctx, s.db, id, model.ScheduleStatusPending, model.ScheduleStatusCanceled)
}

func selectDueSchedules(ctx context.Context, q querier, now time.Time, limit int) ([]model.ScheduledNotification, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+scheduleCols+` FROM scheduled_notifications
		 WHERE status = ? AND due_at <= ?
		 ORDER BY due_at ASC, id ASC
		 LIMIT ?`,
		model.ScheduleStatusPending, now.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select due schedules: %w", err)
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func updateScheduleStatus(ctx context.Context, q querier, id int64, from, to model.ScheduleStatus) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE scheduled_notifications SET status = ? WHERE id = ? AND status = ?`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("update schedule status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func scanSchedules(rows *sql.Rows) ([]model.ScheduledNotification, error) {
	var out []model.ScheduledNotification
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, *sched)
	}
	return out, rows.Err()
}
