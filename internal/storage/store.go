// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/betonem/backend/internal/models"
)

// Sentinel errors returned by Store implementations. Callers match these
// with errors.Is and translate them into the service-level taxonomy.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a uniqueness violation (e.g. a user joining
	// the same wager twice).
	ErrDuplicate = errors.New("already exists")

	// ErrMarketClosed indicates a guarded market write found the market in
	// a terminal state.
	ErrMarketClosed = errors.New("market is not open")

	// ErrWagerSettled indicates a guarded wager write found the wager
	// already settled.
	ErrWagerSettled = errors.New("wager is already settled")

	// ErrConcurrentUpdate indicates a guarded write found the row changed
	// since the caller's snapshot. The caller should re-read and retry.
	ErrConcurrentUpdate = errors.New("row changed since snapshot")
)

// Store defines the persistence interface for the betting backend.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL,
// etc.) without changing the service layer.
//
// Multi-row operations (PlaceBet, ResolveMarket, FinalizeWagerSettlement)
// are atomic: either every mutation is applied or none is.
type Store interface {
	// CreateMarket persists a new market. Markets are created by the group
	// subsystem; this backend consumes them once they exist.
	CreateMarket(ctx context.Context, market *models.Market) error

	// GetMarket retrieves a market by ID.
	GetMarket(ctx context.Context, marketID string) (*models.Market, error)

	// PlaceBet atomically inserts the bet, increments the matching market
	// pool, and debits the bettor's group balance. Returns ErrMarketClosed
	// if the market has left the OPEN state and ErrNotFound if the bettor
	// has no membership row in the market's group. The balance is allowed
	// to go negative.
	PlaceBet(ctx context.Context, bet *models.Bet) error

	// ListBets returns all bets on a market in placement order.
	ListBets(ctx context.Context, marketID string) ([]*models.Bet, error)

	// ResolveMarket atomically applies every balance credit and moves the
	// market into the given terminal state, setting outcome and resolvedAt
	// exactly once. yesPool and noPool are the pools the credits were
	// computed against; if a bet landed since that snapshot the call fails
	// with ErrConcurrentUpdate and nothing is applied, so the caller can
	// recompute. Returns ErrMarketClosed if the market is no longer OPEN;
	// in that case no credit is applied.
	ResolveMarket(ctx context.Context, marketID string, status models.MarketStatus, outcome *bool, resolvedAt int64, yesPool, noPool uint64, credits map[string]int64) error

	// CreateMembership inserts a zero-balance ledger entry for a user
	// joining a group.
	CreateMembership(ctx context.Context, m *models.Membership) error

	// GetMembership retrieves the ledger entry for one (group, user) key.
	// Returns ErrNotFound if the user is not a member.
	GetMembership(ctx context.Context, groupID, userID string) (*models.Membership, error)

	// ListMemberships enumerates all ledger entries for a group.
	ListMemberships(ctx context.Context, groupID string) ([]*models.Membership, error)

	// ApplyBalanceDelta adds delta to one balance and returns the new
	// value. The read-modify-write happens inside the database, so
	// concurrent deltas on the same key never lose updates.
	ApplyBalanceDelta(ctx context.Context, groupID, userID string, delta int64) (int64, error)

	// CreateUser inserts a user profile row (payout handle boundary).
	CreateUser(ctx context.Context, user *models.User) error

	// GetUser retrieves a user by ID. Returns ErrNotFound if absent.
	GetUser(ctx context.Context, userID string) (*models.User, error)

	// CreateWager persists a new real-money wager.
	CreateWager(ctx context.Context, wager *models.Wager) error

	// GetWager retrieves a wager by ID.
	GetWager(ctx context.Context, wagerID string) (*models.Wager, error)

	// CreateParticipant inserts a participant order row. Returns
	// ErrDuplicate if the user already joined the wager.
	CreateParticipant(ctx context.Context, p *models.WagerParticipant) error

	// GetParticipant retrieves one (wager, user) participant row.
	GetParticipant(ctx context.Context, wagerID, userID string) (*models.WagerParticipant, error)

	// ListParticipants returns all participant rows for a wager.
	ListParticipants(ctx context.Context, wagerID string) ([]*models.WagerParticipant, error)

	// MarkParticipantApproved moves a CREATED participant to APPROVED,
	// keyed by gateway order ID. A no-op for any other current state, so
	// redelivered webhooks are safe.
	MarkParticipantApproved(ctx context.Context, orderID string) error

	// MarkParticipantCaptured moves a participant to CAPTURED and records
	// the capture ID, keyed by gateway order ID. A no-op if the
	// participant is already CAPTURED; the stored capture ID is immutable.
	MarkParticipantCaptured(ctx context.Context, orderID, captureID string) error

	// MarkParticipantFailed moves a participant to FAILED (capture denied
	// or refunded), keyed by gateway order ID.
	MarkParticipantFailed(ctx context.Context, orderID string) error

	// CreatePayouts inserts a set of PENDING payout rows atomically.
	CreatePayouts(ctx context.Context, payouts []*models.Payout) error

	// DeletePayouts removes payout rows, used to unwind a settlement whose
	// gateway batch submission failed.
	DeletePayouts(ctx context.Context, payoutIDs []string) error

	// FinalizeWagerSettlement atomically stamps the gateway batch ID on
	// the given payout rows and marks the wager SETTLED. Returns
	// ErrWagerSettled if the wager was settled concurrently.
	FinalizeWagerSettlement(ctx context.Context, wagerID, batchID string, payoutIDs []string) error

	// SetPayoutBatch stamps the gateway batch ID on payout rows without
	// touching any wager (group cash-out batches).
	SetPayoutBatch(ctx context.Context, batchID string, payoutIDs []string) error

	// ListPayoutsByBatch returns all payout rows submitted under one
	// gateway batch.
	ListPayoutsByBatch(ctx context.Context, batchID string) ([]*models.Payout, error)

	// ListPayoutsByGroup returns all cash-out payout rows ever created for
	// a group, in creation order.
	ListPayoutsByGroup(ctx context.Context, groupID string) ([]*models.Payout, error)

	// AttachPayoutItem records a gateway payout-item status on the row
	// identified by its own ID (carried through the gateway as the sender
	// item id). Returns ErrNotFound if the row does not exist in the given
	// batch. Applying the same status twice leaves the row unchanged.
	AttachPayoutItem(ctx context.Context, payoutID, batchID, itemID string, status models.PayoutStatus) error

	// MarkPayoutItem records a gateway payout-item status. The row is
	// matched by item ID when known; otherwise the first row in the batch
	// with no item ID yet is claimed. Applying the same event twice leaves
	// the row unchanged.
	MarkPayoutItem(ctx context.Context, batchID, itemID string, status models.PayoutStatus) error

	// Close releases any resources held by the store.
	Close() error
}
