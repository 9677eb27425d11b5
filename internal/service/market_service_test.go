package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/betonem/backend/internal/models"
	"github.com/betonem/backend/internal/storage"
	"github.com/betonem/backend/internal/storage/sqlite"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedGroup(t *testing.T, store storage.Store, groupID string, userIDs ...string) {
	t.Helper()
	ctx := context.Background()
	for _, userID := range userIDs {
		if err := store.CreateUser(ctx, &models.User{ID: userID, Email: userID + "@example.com", PayoutHandle: "@" + userID}); err != nil {
			t.Fatalf("failed to create user %s: %v", userID, err)
		}
		if err := store.CreateMembership(ctx, &models.Membership{GroupID: groupID, UserID: userID}); err != nil {
			t.Fatalf("failed to create membership %s: %v", userID, err)
		}
	}
}

func balance(t *testing.T, store storage.Store, groupID, userID string) int64 {
	t.Helper()
	m, err := store.GetMembership(context.Background(), groupID, userID)
	if err != nil {
		t.Fatalf("failed to get membership %s: %v", userID, err)
	}
	return m.Balance
}

func TestPlaceBetValidation(t *testing.T) {
	store := newTestStore(t)
	svc := NewMarketService(store)
	ctx := context.Background()
	seedGroup(t, store, "g1", "alice")

	market, err := svc.CreateMarket(ctx, "g1", "alice", "Will the launch slip?")
	if err != nil {
		t.Fatalf("CreateMarket failed: %v", err)
	}

	tests := []struct {
		name    string
		market  string
		user    string
		amount  uint64
		wantErr error
	}{
		{"zero amount", market.ID, "alice", 0, ErrInvalidAmount},
		{"over max", market.ID, "alice", 10_001, ErrInvalidAmount},
		{"non-member", market.ID, "stranger", 10, ErrNotAMember},
		{"missing market", "nope", "alice", 10, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.PlaceBet(ctx, tt.market, tt.user, true, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PlaceBet error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("closed market", func(t *testing.T) {
		if err := svc.Resolve(ctx, market.ID, "alice", nil); err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		_, _, err := svc.PlaceBet(ctx, market.ID, "alice", true, 10)
		if !errors.Is(err, ErrMarketClosed) {
			t.Errorf("PlaceBet error = %v, want ErrMarketClosed", err)
		}
	})
}

func TestResolveProportionalPayouts(t *testing.T) {
	store := newTestStore(t)
	svc := NewMarketService(store)
	ctx := context.Background()
	seedGroup(t, store, "g1", "alice", "bob", "carol")

	market, err := svc.CreateMarket(ctx, "g1", "alice", "Will the home team win?")
	if err != nil {
		t.Fatalf("CreateMarket failed: %v", err)
	}

	// 300 on YES (100 + 200), 100 on NO. Pool of 400 goes to YES.
	for _, bet := range []struct {
		user     string
		position bool
		amount   uint64
	}{
		{"alice", true, 100},
		{"bob", true, 200},
		{"carol", false, 100},
	} {
		if _, _, err := svc.PlaceBet(ctx, market.ID, bet.user, bet.position, bet.amount); err != nil {
			t.Fatalf("PlaceBet(%s) failed: %v", bet.user, err)
		}
	}

	outcome := true
	if err := svc.Resolve(ctx, market.ID, "alice", &outcome); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// alice: -100 + floor(100*400/300) = 33, bob: -200 + floor(200*400/300) = 66.
	if got := balance(t, store, "g1", "alice"); got != 33 {
		t.Errorf("alice balance = %d, want 33", got)
	}
	if got := balance(t, store, "g1", "bob"); got != 66 {
		t.Errorf("bob balance = %d, want 66", got)
	}
	if got := balance(t, store, "g1", "carol"); got != -100 {
		t.Errorf("carol balance = %d, want -100", got)
	}
}

// racingStore injects one extra bet just before the first resolution
// commit, simulating a bettor racing the resolver.
type racingStore struct {
	storage.Store
	bet   *models.Bet
	raced bool
}

func (s *racingStore) ResolveMarket(ctx context.Context, marketID string, status models.MarketStatus, outcome *bool, resolvedAt int64, yesPool, noPool uint64, credits map[string]int64) error {
	if !s.raced {
		s.raced = true
		if err := s.Store.PlaceBet(ctx, s.bet); err != nil {
			return err
		}
	}
	return s.Store.ResolveMarket(ctx, marketID, status, outcome, resolvedAt, yesPool, noPool, credits)
}

func TestResolveRetriesWhenBetRacesCommit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedGroup(t, store, "g1", "alice", "bob")

	market, err := NewMarketService(store).CreateMarket(ctx, "g1", "alice", "Photo finish")
	if err != nil {
		t.Fatalf("CreateMarket failed: %v", err)
	}
	if _, _, err := NewMarketService(store).PlaceBet(ctx, market.ID, "alice", true, 100); err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}

	racing := &racingStore{
		Store: store,
		bet:   &models.Bet{MarketID: market.ID, UserID: "bob", Position: false, Amount: 100},
	}
	svc := NewMarketService(racing)

	outcome := true
	if err := svc.Resolve(ctx, market.ID, "alice", &outcome); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !racing.raced {
		t.Fatal("racing bet was never placed")
	}

	// The late NO bet must be part of the pool alice wins, so the
	// ledger still sums to zero.
	if got := balance(t, store, "g1", "alice"); got != 100 {
		t.Errorf("alice balance = %d, want 100", got)
	}
	if got := balance(t, store, "g1", "bob"); got != -100 {
		t.Errorf("bob balance = %d, want -100", got)
	}

	detail, err := svc.GetMarket(ctx, market.ID)
	if err != nil {
		t.Fatalf("GetMarket failed: %v", err)
	}
	if detail.Market.Status != models.MarketResolved {
		t.Errorf("status = %s, want RESOLVED", detail.Market.Status)
	}
	if detail.Market.YesPool != 100 || detail.Market.NoPool != 100 {
		t.Errorf("pools = %d/%d, want 100/100", detail.Market.YesPool, detail.Market.NoPool)
	}
}

func TestResolveCancellationRefundsExactly(t *testing.T) {
	store := newTestStore(t)
	svc := NewMarketService(store)
	ctx := context.Background()
	seedGroup(t, store, "g1", "alice", "bob")

	market, err := svc.CreateMarket(ctx, "g1", "alice", "Cancelled event")
	if err != nil {
		t.Fatalf("CreateMarket failed: %v", err)
	}

	// Three bets by the same user aggregate into one refund.
	for _, amount := range []uint64{20, 30, 10} {
		if _, _, err := svc.PlaceBet(ctx, market.ID, "alice", amount%2 == 0, amount); err != nil {
			t.Fatalf("PlaceBet failed: %v", err)
		}
	}
	if got := balance(t, store, "g1", "alice"); got != -60 {
		t.Fatalf("alice balance before cancel = %d, want -60", got)
	}

	if err := svc.Resolve(ctx, market.ID, "alice", nil); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if got := balance(t, store, "g1", "alice"); got != 0 {
		t.Errorf("alice balance after cancel = %d, want 0", got)
	}
	detail, err := svc.GetMarket(ctx, market.ID)
	if err != nil {
		t.Fatalf("GetMarket failed: %v", err)
	}
	if detail.Market.Status != models.MarketCancelled {
		t.Errorf("status = %s, want CANCELLED", detail.Market.Status)
	}
	if detail.Market.Outcome != nil {
		t.Error("cancelled market must have no outcome")
	}
}

func TestResolveEmptyWinningPoolRefunds(t *testing.T) {
	store := newTestStore(t)
	svc := NewMarketService(store)
	ctx := context.Background()
	seedGroup(t, store, "g1", "alice", "bob")

	market, err := svc.CreateMarket(ctx, "g1", "alice", "One-sided market")
	if err != nil {
		t.Fatalf("CreateMarket failed: %v", err)
	}

	// Everyone bets NO, then YES wins: every stake comes back.
	if _, _, err := svc.PlaceBet(ctx, market.ID, "alice", false, 50); err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	if _, _, err := svc.PlaceBet(ctx, market.ID, "bob", false, 70); err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}

	outcome := true
	if err := svc.Resolve(ctx, market.ID, "alice", &outcome); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if got := balance(t, store, "g1", "alice"); got != 0 {
		t.Errorf("alice balance = %d, want 0", got)
	}
	if got := balance(t, store, "g1", "bob"); got != 0 {
		t.Errorf("bob balance = %d, want 0", got)
	}
}

func TestResolveAuthorization(t *testing.T) {
	store := newTestStore(t)
	svc := NewMarketService(store)
	ctx := context.Background()
	seedGroup(t, store, "g1", "alice", "bob")

	market, err := svc.CreateMarket(ctx, "g1", "alice", "Creator-only resolution")
	if err != nil {
		t.Fatalf("CreateMarket failed: %v", err)
	}

	outcome := true
	if err := svc.Resolve(ctx, market.ID, "bob", &outcome); !errors.Is(err, ErrNotCreator) {
		t.Errorf("Resolve by non-creator error = %v, want ErrNotCreator", err)
	}
	if err := svc.Resolve(ctx, market.ID, "alice", &outcome); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := svc.Resolve(ctx, market.ID, "alice", &outcome); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second Resolve error = %v, want ErrAlreadyResolved", err)
	}
}
