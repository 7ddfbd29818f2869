package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/hotel-ops/internal/model"
)

// UpsertUsers inserts or updates a batch of staff users.
func (s *SQLStore) UpsertUsers(ctx context.Context, users []model.User) error {
	if len(users) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, s.q(`
		INSERT INTO users (id, display_name, role) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			role = excluded.role`))
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, u := range users {
		if u.ID == "" {
			return fmt.Errorf("user id must not be empty")
		}
		if _, err := stmt.ExecContext(ctx, u.ID, u.DisplayName, u.Role); err != nil {
			return fmt.Errorf("upserting user %s: %w", u.ID, err)
		}
	}

	return tx.Commit()
}

// GetUsers returns the users with the given IDs, in no particular order.
// IDs with no matching user are omitted.
func (s *SQLStore) GetUsers(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}

	query, args, err := sqlx.In("SELECT id, display_name, role FROM users WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("building user lookup: %w", err)
	}

	users := []model.User{}
	if err := s.db.SelectContext(ctx, &users, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	return users, nil
}

// ListUsers returns every user ordered by display name.
func (s *SQLStore) ListUsers(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	err := s.db.SelectContext(ctx, &users,
		"SELECT id, display_name, role FROM users ORDER BY display_name, id")
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	return users, nil
}
