package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/mealplan/internal/notify"
)

// LeaseStore keeps single-row named leases in scheduler_leases.
type LeaseStore struct {
	db *sql.DB
}

var _ notify.Lease = (*LeaseStore)(nil)

func NewLeaseStore(db *sql.DB) *LeaseStore {
	return &LeaseStore{db: db}
}

// Acquire takes the lease when it is free, expired, or already held by
// holder. It reports whether holder owns the lease afterwards.
func (s *LeaseStore) Acquire(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error) {
	now = now.UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduler_leases (name, holder, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		 WHERE scheduler_leases.holder = excluded.holder OR scheduler_leases.expires_at <= ?`,
		name, holder, now.Add(ttl), now,
	)
	if err != nil {
		return false, fmt.Errorf("acquire lease %q: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Release drops the lease if holder still owns it.
func (s *LeaseStore) Release(ctx context.Context, name, holder string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM scheduler_leases WHERE name = ? AND holder = ?`,
		name, holder,
	)
	if err != nil {
		return fmt.Errorf("release lease %q: %w", name, err)
	}
	return nil
}
