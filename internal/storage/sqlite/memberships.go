package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/betonem/backend/internal/models"
	"github.com/betonem/backend/internal/storage"
)

// CreateMembership inserts a ledger entry for a user joining a group.
func (s *SQLiteStore) CreateMembership(ctx context.Context, m *models.Membership) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO memberships (group_id, user_id, balance) VALUES (?, ?, ?)",
		m.GroupID, m.UserID, m.Balance,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("membership %s/%s: %w", m.GroupID, m.UserID, storage.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

// GetMembership retrieves the ledger entry for one (group, user) key.
func (s *SQLiteStore) GetMembership(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	m := &models.Membership{}
	err := s.db.QueryRowContext(ctx,
		"SELECT group_id, user_id, balance FROM memberships WHERE group_id = ? AND user_id = ?",
		groupID, userID,
	).Scan(&m.GroupID, &m.UserID, &m.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership %s/%s: %w", groupID, userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListMemberships enumerates all ledger entries for a group.
func (s *SQLiteStore) ListMemberships(ctx context.Context, groupID string) ([]*models.Membership, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT group_id, user_id, balance FROM memberships WHERE group_id = ? ORDER BY user_id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		m := &models.Membership{}
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}
	return memberships, nil
}

// ApplyBalanceDelta adds delta to one balance inside the database and
// returns the new value. Balances have no lower bound.
func (s *SQLiteStore) ApplyBalanceDelta(ctx context.Context, groupID, userID string, delta int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE memberships SET balance = balance + ? WHERE group_id = ? AND user_id = ?",
		delta, groupID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to apply balance delta: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("membership %s/%s: %w", groupID, userID, storage.ErrNotFound)
	}

	var balance int64
	err = s.db.QueryRowContext(ctx,
		"SELECT balance FROM memberships WHERE group_id = ? AND user_id = ?",
		groupID, userID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

// CreateUser inserts a user profile row.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, payout_handle) VALUES (?, ?, ?)",
		user.ID, user.Email, user.PayoutHandle,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, payout_handle FROM users WHERE id = ?",
		userID,
	).Scan(&user.ID, &user.Email, &user.PayoutHandle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
