package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/betonem/backend/internal/metrics"
	"github.com/betonem/backend/internal/models"
	"github.com/betonem/backend/internal/parimutuel"
	"github.com/betonem/backend/internal/storage"
)

const (
	// MinBetAmount and MaxBetAmount bound a single stake, in coins.
	MinBetAmount = 1
	MaxBetAmount = 10_000

	maxTitleLength = 200
)

// MarketService manages binary parimutuel markets and the group coin
// ledger they settle against.
type MarketService struct {
	store storage.Store
}

// NewMarketService creates a market service.
func NewMarketService(store storage.Store) *MarketService {
	return &MarketService{store: store}
}

// MarketDetail is a market together with its derived odds.
type MarketDetail struct {
	Market *models.Market
	YesPct int
	NoPct  int
	Bets   []*models.Bet
}

// CreateMarket opens a new market in a group. The creator must be a
// member; only they may later resolve or cancel it.
func (s *MarketService) CreateMarket(ctx context.Context, groupID, creatorID, title string) (*models.Market, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > maxTitleLength {
		return nil, ErrInvalidTitle
	}

	if _, err := s.store.GetMembership(ctx, groupID, creatorID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotAMember
		}
		return nil, fmt.Errorf("check membership: %w", err)
	}

	market := &models.Market{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		CreatedBy: creatorID,
		Title:     title,
		Status:    models.MarketOpen,
		CreatedAt: time.Now().Unix(),
	}
	if err := s.store.CreateMarket(ctx, market); err != nil {
		return nil, fmt.Errorf("create market: %w", err)
	}

	slog.Info("market created", "market_id", market.ID, "group_id", groupID, "created_by", creatorID)
	return market, nil
}

// GetMarket returns a market with its current odds and bets.
func (s *MarketService) GetMarket(ctx context.Context, marketID string) (*MarketDetail, error) {
	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get market: %w", err)
	}

	bets, err := s.store.ListBets(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}

	yesPct, noPct := parimutuel.Odds(market.YesPool, market.NoPool)
	return &MarketDetail{Market: market, YesPct: yesPct, NoPct: noPct, Bets: bets}, nil
}

// PreviewBet returns what a candidate bet would pay if its side won,
// given the pools as they stand right now.
func (s *MarketService) PreviewBet(ctx context.Context, marketID string, position bool, amount uint64) (uint64, error) {
	if amount < MinBetAmount || amount > MaxBetAmount {
		return 0, ErrInvalidAmount
	}

	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get market: %w", err)
	}
	if market.Terminal() {
		return 0, ErrMarketClosed
	}

	return parimutuel.PreviewPayout(amount, position, market.YesPool, market.NoPool), nil
}

// PlaceBet stakes coins on one side of a market. The bet insert, the pool
// increment, and the balance debit commit together or not at all; the
// bettor's balance may go negative. Returns the bet and its projected
// payout at current pools.
func (s *MarketService) PlaceBet(ctx context.Context, marketID, userID string, position bool, amount uint64) (*models.Bet, uint64, error) {
	if amount < MinBetAmount || amount > MaxBetAmount {
		return nil, 0, ErrInvalidAmount
	}

	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("get market: %w", err)
	}
	if market.Terminal() {
		return nil, 0, ErrMarketClosed
	}

	if _, err := s.store.GetMembership(ctx, market.GroupID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, 0, ErrNotAMember
		}
		return nil, 0, fmt.Errorf("check membership: %w", err)
	}

	projected := parimutuel.PreviewPayout(amount, position, market.YesPool, market.NoPool)

	bet := &models.Bet{
		ID:        uuid.New().String(),
		MarketID:  marketID,
		UserID:    userID,
		Position:  position,
		Amount:    amount,
		CreatedAt: time.Now().Unix(),
	}
	if err := s.store.PlaceBet(ctx, bet); err != nil {
		switch {
		case errors.Is(err, storage.ErrMarketClosed):
			// Lost the race with a resolution.
			return nil, 0, ErrMarketClosed
		case errors.Is(err, storage.ErrNotFound):
			return nil, 0, ErrNotAMember
		}
		return nil, 0, fmt.Errorf("place bet: %w", err)
	}

	metrics.BetsPlaced.WithLabelValues(positionLabel(position)).Inc()
	slog.Info("bet placed",
		"market_id", marketID,
		"user_id", userID,
		"position", positionLabel(position),
		"amount", amount)
	return bet, projected, nil
}

// resolveAttempts bounds the snapshot/retry loop in Resolve. Each retry
// means a bet landed between our reads and the commit; the status flip
// inside the transaction blocks further bets once it wins.
const resolveAttempts = 3

// Resolve moves a market to a terminal state and credits the ledger.
// A nil outcome cancels the market and refunds every stake exactly.
// Otherwise winners split the whole pool in proportion to their stakes,
// floored; if nobody backed the winning side, every stake is refunded.
// Only the creator may resolve, and only once.
//
// The credits are computed from a snapshot of the market and its bets.
// The store rejects the commit if the pools moved since that snapshot,
// so a bet racing the resolution is either fully credited or fully
// rejected, never silently dropped from the fan-out.
func (s *MarketService) Resolve(ctx context.Context, marketID, callerID string, outcome *bool) error {
	var lastErr error
	for attempt := 0; attempt < resolveAttempts; attempt++ {
		market, err := s.store.GetMarket(ctx, marketID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("get market: %w", err)
		}
		if market.CreatedBy != callerID {
			return ErrNotCreator
		}
		if market.Terminal() {
			return ErrAlreadyResolved
		}

		bets, err := s.store.ListBets(ctx, marketID)
		if err != nil {
			return fmt.Errorf("list bets: %w", err)
		}

		status := models.MarketCancelled
		result := "cancelled"
		var credits map[string]int64
		if outcome == nil {
			credits = refundCredits(bets)
		} else {
			status = models.MarketResolved
			result = "no"
			if *outcome {
				result = "yes"
			}

			winningPool := market.NoPool
			if *outcome {
				winningPool = market.YesPool
			}
			if winningPool == 0 {
				// One-sided market: nobody backed the winner, so every
				// stake goes back.
				credits = refundCredits(bets)
				result = "refund"
			} else {
				credits = payoutCredits(bets, *outcome, winningPool, market.YesPool+market.NoPool)
			}
		}

		err = s.store.ResolveMarket(ctx, marketID, status, outcome, time.Now().Unix(),
			market.YesPool, market.NoPool, credits)
		switch {
		case errors.Is(err, storage.ErrConcurrentUpdate):
			lastErr = err
			continue
		case errors.Is(err, storage.ErrMarketClosed):
			return ErrAlreadyResolved
		case err != nil:
			return fmt.Errorf("resolve market: %w", err)
		}

		metrics.MarketsResolved.WithLabelValues(result).Inc()
		slog.Info("market resolved",
			"market_id", marketID,
			"result", result,
			"bets", len(bets),
			"credited_users", len(credits))
		return nil
	}
	return fmt.Errorf("resolve market: %w", lastErr)
}

// refundCredits aggregates one exact refund per bettor.
func refundCredits(bets []*models.Bet) map[string]int64 {
	credits := make(map[string]int64)
	for _, bet := range bets {
		credits[bet.UserID] += int64(bet.Amount)
	}
	return credits
}

// payoutCredits aggregates floored proportional payouts per winning
// bettor. Each bet is floored individually before aggregation, so the
// ledger matches what each bet would have paid on its own.
func payoutCredits(bets []*models.Bet, outcome bool, winningPool, totalPool uint64) map[string]int64 {
	credits := make(map[string]int64)
	for _, bet := range bets {
		if bet.Position != outcome {
			continue
		}
		credits[bet.UserID] += int64(parimutuel.ResolutionPayout(bet.Amount, winningPool, totalPool))
	}
	return credits
}

func positionLabel(position bool) string {
	if position {
		return "yes"
	}
	return "no"
}
