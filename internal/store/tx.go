package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/mealplan/internal/model"
	"github.com/dukerupert/mealplan/internal/notify"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is a unit of work for processing one schedule.
type Tx struct {
	q querier
}

var _ notify.Tx = (*Tx)(nil)

func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx notify.Tx) error) error {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(ctx, &Tx{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ResolveFamilyMembers returns the user ids currently in the family.
func (t *Tx) ResolveFamilyMembers(ctx context.Context, familyID int64) ([]int64, error) {
	return listMemberIDs(ctx, t.q, familyID)
}

// InsertNotifications inserts rows and returns how many were written.
func (t *Tx) InsertNotifications(ctx context.Context, rows []model.Notification) (int, error) {
	return insertNotifications(ctx, t.q, rows)
}

// UpdateScheduleStatus applies a conditional status transition.
func (t *Tx) UpdateScheduleStatus(ctx context.Context, id int64, from, to model.ScheduleStatus) (bool, error) {
	return updateScheduleStatus(ctx, t.q, id, from, to)
}
