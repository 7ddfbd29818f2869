package testutil

import (
	"context"
	"testing"

	"github.com/nhle/hotel-ops/internal/model"
	"github.com/nhle/hotel-ops/internal/store"
)

// NewTestStore creates an in-memory SQLStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedUsers inserts staff users with the given IDs; display names mirror
// the IDs.
func SeedUsers(t *testing.T, s store.Store, ids ...string) {
	t.Helper()

	users := make([]model.User, len(ids))
	for i, id := range ids {
		users[i] = model.User{ID: id, DisplayName: id, Role: "housekeeping"}
	}
	if err := s.UpsertUsers(context.Background(), users); err != nil {
		t.Fatalf("seeding users: %v", err)
	}
}

// SeedTask creates a pending task with the given title.
func SeedTask(t *testing.T, s store.Store, title string, assignees ...string) model.Task {
	t.Helper()

	task, err := s.CreateTask(context.Background(), model.NewTask{
		Title:      title,
		Location:   "Room 101",
		Priority:   model.PriorityMedium,
		AssignedTo: assignees,
	})
	if err != nil {
		t.Fatalf("seeding task %q: %v", title, err)
	}
	return *task
}
