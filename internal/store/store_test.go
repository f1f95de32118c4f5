package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/dukerupert/mealplan/internal/database"
	"github.com/dukerupert/mealplan/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedFamily creates a family with n members and returns its id and the
// member user ids.
func seedFamily(t *testing.T, db *sql.DB, n int) (int64, []int64) {
	t.Helper()
	ctx := context.Background()
	fs := NewFamilyStore(db)
	us := NewUserStore(db)

	fam, err := fs.Create(ctx, "Family")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}

	var ids []int64
	for i := 0; i < n; i++ {
		u, err := us.Create(ctx, fmt.Sprintf("f%d-user%d@example.com", fam.ID, i), fmt.Sprintf("User %d", i))
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		role := model.RoleMember
		if i == 0 {
			role = model.RoleAdmin
		}
		if _, err := fs.AddMember(ctx, fam.ID, u.ID, role); err != nil {
			t.Fatalf("add member: %v", err)
		}
		ids = append(ids, u.ID)
	}
	return fam.ID, ids
}
