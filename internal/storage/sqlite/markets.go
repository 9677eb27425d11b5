package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/betonem/backend/internal/models"
	"github.com/betonem/backend/internal/storage"
)

// CreateMarket persists a new market row.
func (s *SQLiteStore) CreateMarket(ctx context.Context, market *models.Market) error {
	if market.ID == "" {
		market.ID = uuid.New().String()
	}
	if market.CreatedAt == 0 {
		market.CreatedAt = time.Now().Unix()
	}
	if market.Status == "" {
		market.Status = models.MarketOpen
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO markets (id, group_id, created_by, title, status, yes_pool, no_pool, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		market.ID, market.GroupID, market.CreatedBy, market.Title,
		string(market.Status), market.YesPool, market.NoPool, market.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert market: %w", err)
	}
	return nil
}

// GetMarket retrieves a market by ID.
func (s *SQLiteStore) GetMarket(ctx context.Context, marketID string) (*models.Market, error) {
	market := &models.Market{}
	var status string
	var outcome sql.NullBool

	err := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, created_by, title, status, yes_pool, no_pool, outcome, created_at, resolved_at
		 FROM markets WHERE id = ?`,
		marketID,
	).Scan(&market.ID, &market.GroupID, &market.CreatedBy, &market.Title,
		&status, &market.YesPool, &market.NoPool, &outcome, &market.CreatedAt, &market.ResolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("market %s: %w", marketID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}

	market.Status = models.MarketStatus(status)
	if outcome.Valid {
		v := outcome.Bool
		market.Outcome = &v
	}
	return market, nil
}

// PlaceBet inserts the bet, bumps the matching pool, and debits the
// bettor's balance in a single transaction. The pool update carries a
// status guard so a bet racing a resolution either lands entirely before
// it or fails entirely with ErrMarketClosed.
func (s *SQLiteStore) PlaceBet(ctx context.Context, bet *models.Bet) error {
	if bet.ID == "" {
		bet.ID = uuid.New().String()
	}
	if bet.CreatedAt == 0 {
		bet.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var groupID string
	err = tx.QueryRowContext(ctx, "SELECT group_id FROM markets WHERE id = ?", bet.MarketID).Scan(&groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("market %s: %w", bet.MarketID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up market: %w", err)
	}

	pool := "no_pool"
	if bet.Position {
		pool = "yes_pool"
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE markets SET "+pool+" = "+pool+" + ? WHERE id = ? AND status = ?",
		bet.Amount, bet.MarketID, string(models.MarketOpen),
	)
	if err != nil {
		return fmt.Errorf("failed to update pool: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrMarketClosed
	}

	res, err = tx.ExecContext(ctx,
		"UPDATE memberships SET balance = balance - ? WHERE group_id = ? AND user_id = ?",
		bet.Amount, groupID, bet.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("membership %s/%s: %w", groupID, bet.UserID, storage.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO bets (id, market_id, user_id, position, amount, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		bet.ID, bet.MarketID, bet.UserID, bet.Position, bet.Amount, bet.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListBets returns all bets on a market in placement order.
func (s *SQLiteStore) ListBets(ctx context.Context, marketID string) ([]*models.Bet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, market_id, user_id, position, amount, created_at
		 FROM bets WHERE market_id = ? ORDER BY created_at, id`,
		marketID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}
	defer rows.Close()

	var bets []*models.Bet
	for rows.Next() {
		bet := &models.Bet{}
		if err := rows.Scan(&bet.ID, &bet.MarketID, &bet.UserID, &bet.Position, &bet.Amount, &bet.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bets: %w", err)
	}
	return bets, nil
}

// ResolveMarket applies the payout fan-out and the terminal state flip as
// one transaction. A mid-way failure rolls back completely: the market
// stays OPEN and no partial credits become visible. The pool comparison
// catches bets that committed after the caller computed the credits.
func (s *SQLiteStore) ResolveMarket(ctx context.Context, marketID string, status models.MarketStatus, outcome *bool, resolvedAt int64, yesPool, noPool uint64, credits map[string]int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var groupID string
	var curYes, curNo uint64
	err = tx.QueryRowContext(ctx,
		"SELECT group_id, yes_pool, no_pool FROM markets WHERE id = ?", marketID,
	).Scan(&groupID, &curYes, &curNo)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("market %s: %w", marketID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up market: %w", err)
	}
	if curYes != yesPool || curNo != noPool {
		return fmt.Errorf("market %s pools moved to %d/%d: %w", marketID, curYes, curNo, storage.ErrConcurrentUpdate)
	}

	// The status guard makes concurrent resolutions serialize: the loser
	// flips zero rows and the whole transaction unwinds.
	var outcomeVal any
	if outcome != nil {
		outcomeVal = *outcome
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE markets SET status = ?, outcome = ?, resolved_at = ? WHERE id = ? AND status = ?",
		string(status), outcomeVal, resolvedAt, marketID, string(models.MarketOpen),
	)
	if err != nil {
		return fmt.Errorf("failed to update market status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrMarketClosed
	}

	// Deterministic credit order keeps replays and tests stable.
	userIDs := make([]string, 0, len(credits))
	for userID := range credits {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	for _, userID := range userIDs {
		res, err := tx.ExecContext(ctx,
			"UPDATE memberships SET balance = balance + ? WHERE group_id = ? AND user_id = ?",
			credits[userID], groupID, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to credit user %s: %w", userID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("membership %s/%s: %w", groupID, userID, storage.ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
