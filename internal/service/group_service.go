package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/betonem/backend/internal/models"
	"github.com/betonem/backend/internal/storage"
)

// GroupService manages group memberships and the coin ledger reads the
// API exposes.
type GroupService struct {
	store storage.Store
}

// NewGroupService creates a group service.
func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{store: store}
}

// Join adds a user to a group with a zero starting balance. Joining an
// already-joined group is a no-op.
func (s *GroupService) Join(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	membership := &models.Membership{GroupID: groupID, UserID: userID}
	if err := s.store.CreateMembership(ctx, membership); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return s.getMembership(ctx, groupID, userID)
		}
		return nil, fmt.Errorf("join group: %w", err)
	}

	slog.Info("member joined group", "group_id", groupID, "user_id", userID)
	return membership, nil
}

// Balance returns one member's ledger entry.
func (s *GroupService) Balance(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	return s.getMembership(ctx, groupID, userID)
}

// Balances returns every ledger entry in a group.
func (s *GroupService) Balances(ctx context.Context, groupID string) ([]*models.Membership, error) {
	memberships, err := s.store.ListMemberships(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	return memberships, nil
}

func (s *GroupService) getMembership(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	membership, err := s.store.GetMembership(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotAMember
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return membership, nil
}
