package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/mealplan/internal/model"
)

// ErrInvalidLimit is returned when a batch limit is not positive.
var ErrInvalidLimit = errors.New("limit must be positive")

// errNotPending aborts a unit of work whose schedule left PENDING after it
// was selected.
var errNotPending = errors.New("schedule no longer pending")

// Result is the aggregate outcome of one windowed batch.
type Result struct {
	Due       int `json:"due"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Job fans due schedules out to family members, one transaction per schedule.
type Job struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewJob creates a windowed scheduler job.
func NewJob(store Store, logger *slog.Logger) *Job {
	return &Job{store: store, logger: logger, now: time.Now}
}

// Run processes up to limit schedules due at or before now. A zero now uses
// the current time. Per-schedule failures are logged and counted; only
// invalid input or a failure to select the batch is returned as an error.
func (j *Job) Run(ctx context.Context, now time.Time, limit int) (Result, error) {
	if limit <= 0 {
		return Result{}, fmt.Errorf("run windowed job: %w: %d", ErrInvalidLimit, limit)
	}
	if now.IsZero() {
		now = j.now()
	}
	now = now.UTC()

	due, err := j.store.SelectDueSchedules(ctx, now, limit)
	if err != nil {
		return Result{}, fmt.Errorf("select due schedules: %w", err)
	}

	res := Result{Due: len(due)}
	for _, sched := range due {
		if ctx.Err() != nil {
			j.logger.Warn("windowed job interrupted", "remaining", res.Due-res.Processed-res.Failed-res.Skipped, "error", ctx.Err())
			break
		}

		created, err := j.process(ctx, sched)
		switch {
		case errors.Is(err, errNotPending):
			res.Skipped++
			j.logger.Info("schedule skipped", "schedule_id", sched.ID, "reason", err)
		case err != nil:
			res.Failed++
			j.logger.Error("schedule failed",
				"schedule_id", sched.ID,
				"family_id", sched.FamilyID,
				"type", sched.Type.String(),
				"ref_id", sched.RefID,
				"due_at", sched.DueAt,
				"error", err,
			)
		default:
			res.Processed++
			j.logger.Debug("schedule processed", "schedule_id", sched.ID, "family_id", sched.FamilyID, "created", created)
		}
	}

	return res, nil
}

func (j *Job) process(ctx context.Context, sched model.ScheduledNotification) (int, error) {
	var created int
	err := j.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		members, err := tx.ResolveFamilyMembers(ctx, sched.FamilyID)
		if err != nil {
			return fmt.Errorf("resolve family %d: %w", sched.FamilyID, err)
		}

		w := &Writer{sink: tx, now: j.now}
		created, err = w.CreateForUsers(ctx, members, sched.FamilyID, sched.Type, sched.RefID)
		if err != nil {
			return err
		}

		applied, err := w.MarkScheduledDone(ctx, sched.ID)
		if err != nil {
			return err
		}
		if !applied {
			return errNotPending
		}
		return nil
	})
	return created, err
}
