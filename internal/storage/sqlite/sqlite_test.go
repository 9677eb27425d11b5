package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/betonem/backend/internal/models"
	"github.com/betonem/backend/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedGroup(t *testing.T, store *SQLiteStore, groupID string, userIDs ...string) {
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

func TestMarketStorage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedGroup(t, store, "g1", "alice", "bob")

	market := &models.Market{GroupID: "g1", CreatedBy: "alice", Title: "Will it rain tomorrow?"}
	if err := store.CreateMarket(ctx, market); err != nil {
		t.Fatalf("CreateMarket failed: %v", err)
	}

	t.Run("PlaceBet debits balance and bumps pool together", func(t *testing.T) {
		err := store.PlaceBet(ctx, &models.Bet{MarketID: market.ID, UserID: "alice", Position: true, Amount: 30})
		if err != nil {
			t.Fatalf("PlaceBet failed: %v", err)
		}

		got, err := store.GetMarket(ctx, market.ID)
		if err != nil {
			t.Fatalf("GetMarket failed: %v", err)
		}
		if got.YesPool != 30 || got.NoPool != 0 {
			t.Errorf("pools = %d/%d, want 30/0", got.YesPool, got.NoPool)
		}

		m, err := store.GetMembership(ctx, "g1", "alice")
		if err != nil {
			t.Fatalf("GetMembership failed: %v", err)
		}
		if m.Balance != -30 {
			t.Errorf("balance = %d, want -30 (debt is allowed)", m.Balance)
		}
	})

	t.Run("PlaceBet without membership rolls back the pool bump", func(t *testing.T) {
		err := store.PlaceBet(ctx, &models.Bet{MarketID: market.ID, UserID: "stranger", Position: true, Amount: 10})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("PlaceBet error = %v, want ErrNotFound", err)
		}

		got, _ := store.GetMarket(ctx, market.ID)
		if got.YesPool != 30 {
			t.Errorf("yes pool = %d after failed bet, want 30", got.YesPool)
		}
	})

	t.Run("resolution with a stale pool snapshot is rejected", func(t *testing.T) {
		outcome := true
		err := store.ResolveMarket(ctx, market.ID, models.MarketResolved, &outcome, 900, 20, 0, map[string]int64{"alice": 40})
		if !errors.Is(err, storage.ErrConcurrentUpdate) {
			t.Fatalf("ResolveMarket error = %v, want ErrConcurrentUpdate", err)
		}

		got, _ := store.GetMarket(ctx, market.ID)
		if got.Status != models.MarketOpen {
			t.Errorf("status = %s after rejected resolution, want OPEN", got.Status)
		}
		m, _ := store.GetMembership(ctx, "g1", "alice")
		if m.Balance != -30 {
			t.Errorf("alice balance = %d after rejected resolution, want -30", m.Balance)
		}
	})

	t.Run("ResolveMarket credits winners and flips status once", func(t *testing.T) {
		if err := store.PlaceBet(ctx, &models.Bet{MarketID: market.ID, UserID: "bob", Position: false, Amount: 10}); err != nil {
			t.Fatalf("PlaceBet failed: %v", err)
		}

		outcome := true
		err := store.ResolveMarket(ctx, market.ID, models.MarketResolved, &outcome, 1000, 30, 10, map[string]int64{"alice": 40})
		if err != nil {
			t.Fatalf("ResolveMarket failed: %v", err)
		}

		got, _ := store.GetMarket(ctx, market.ID)
		if got.Status != models.MarketResolved {
			t.Errorf("status = %s, want RESOLVED", got.Status)
		}
		if got.Outcome == nil || !*got.Outcome {
			t.Error("expected outcome YES")
		}
		if got.ResolvedAt != 1000 {
			t.Errorf("resolved_at = %d, want 1000", got.ResolvedAt)
		}

		m, _ := store.GetMembership(ctx, "g1", "alice")
		if m.Balance != 10 { // -30 stake + 40 payout
			t.Errorf("alice balance = %d, want 10", m.Balance)
		}
		m, _ = store.GetMembership(ctx, "g1", "bob")
		if m.Balance != -10 {
			t.Errorf("bob balance = %d, want -10", m.Balance)
		}
	})

	t.Run("second resolution fails and credits nothing", func(t *testing.T) {
		outcome := false
		err := store.ResolveMarket(ctx, market.ID, models.MarketResolved, &outcome, 2000, 30, 10, map[string]int64{"bob": 40})
		if !errors.Is(err, storage.ErrMarketClosed) {
			t.Fatalf("ResolveMarket error = %v, want ErrMarketClosed", err)
		}

		m, _ := store.GetMembership(ctx, "g1", "bob")
		if m.Balance != -10 {
			t.Errorf("bob balance = %d after rejected resolution, want -10", m.Balance)
		}
	})

	t.Run("PlaceBet on resolved market fails", func(t *testing.T) {
		err := store.PlaceBet(ctx, &models.Bet{MarketID: market.ID, UserID: "bob", Position: true, Amount: 5})
		if !errors.Is(err, storage.ErrMarketClosed) {
			t.Fatalf("PlaceBet error = %v, want ErrMarketClosed", err)
		}
	})

	t.Run("duplicate membership is rejected", func(t *testing.T) {
		err := store.CreateMembership(ctx, &models.Membership{GroupID: "g1", UserID: "alice"})
		if !errors.Is(err, storage.ErrDuplicate) {
			t.Fatalf("CreateMembership error = %v, want ErrDuplicate", err)
		}
	})
}

func TestParticipantTransitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	wager := &models.Wager{Title: "Super Bowl", CreatedBy: "alice", StakeCents: 2000}
	if err := store.CreateWager(ctx, wager); err != nil {
		t.Fatalf("CreateWager failed: %v", err)
	}
	p := &models.WagerParticipant{WagerID: wager.ID, UserID: "alice", OrderID: "ORDER-1"}
	if err := store.CreateParticipant(ctx, p); err != nil {
		t.Fatalf("CreateParticipant failed: %v", err)
	}

	t.Run("joining twice is rejected", func(t *testing.T) {
		err := store.CreateParticipant(ctx, &models.WagerParticipant{WagerID: wager.ID, UserID: "alice", OrderID: "ORDER-2"})
		if !errors.Is(err, storage.ErrDuplicate) {
			t.Fatalf("CreateParticipant error = %v, want ErrDuplicate", err)
		}
	})

	t.Run("capture is idempotent and capture id immutable", func(t *testing.T) {
		if err := store.MarkParticipantApproved(ctx, "ORDER-1"); err != nil {
			t.Fatalf("MarkParticipantApproved failed: %v", err)
		}
		if err := store.MarkParticipantCaptured(ctx, "ORDER-1", "CAP-1"); err != nil {
			t.Fatalf("MarkParticipantCaptured failed: %v", err)
		}
		// Redelivered events must not change anything.
		if err := store.MarkParticipantCaptured(ctx, "ORDER-1", "CAP-OTHER"); err != nil {
			t.Fatalf("second MarkParticipantCaptured failed: %v", err)
		}
		if err := store.MarkParticipantApproved(ctx, "ORDER-1"); err != nil {
			t.Fatalf("late MarkParticipantApproved failed: %v", err)
		}

		got, err := store.GetParticipant(ctx, wager.ID, "alice")
		if err != nil {
			t.Fatalf("GetParticipant failed: %v", err)
		}
		if got.Status != models.ParticipantCaptured {
			t.Errorf("status = %s, want CAPTURED", got.Status)
		}
		if got.CaptureID != "CAP-1" {
			t.Errorf("capture id = %s, want CAP-1", got.CaptureID)
		}
	})

	t.Run("settlement finalizes once", func(t *testing.T) {
		payouts := []*models.Payout{
			{WagerID: wager.ID, UserID: "alice", AmountCents: 2000, Status: models.PayoutPending},
		}
		if err := store.CreatePayouts(ctx, payouts); err != nil {
			t.Fatalf("CreatePayouts failed: %v", err)
		}

		ids := []string{payouts[0].ID}
		if err := store.FinalizeWagerSettlement(ctx, wager.ID, "BATCH-1", ids); err != nil {
			t.Fatalf("FinalizeWagerSettlement failed: %v", err)
		}
		err := store.FinalizeWagerSettlement(ctx, wager.ID, "BATCH-2", ids)
		if !errors.Is(err, storage.ErrWagerSettled) {
			t.Fatalf("second finalize error = %v, want ErrWagerSettled", err)
		}

		got, _ := store.GetWager(ctx, wager.ID)
		if got.Status != models.WagerSettled {
			t.Errorf("wager status = %s, want SETTLED", got.Status)
		}
		rows, err := store.ListPayoutsByBatch(ctx, "BATCH-1")
		if err != nil {
			t.Fatalf("ListPayoutsByBatch failed: %v", err)
		}
		if len(rows) != 1 || rows[0].BatchID != "BATCH-1" {
			t.Errorf("expected one payout stamped with BATCH-1, got %+v", rows)
		}
	})
}

func TestMarkPayoutItem(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payouts := []*models.Payout{
		{GroupID: "g1", UserID: "alice", AmountCents: 5000, Status: models.PayoutPending},
		{GroupID: "g1", UserID: "bob", AmountCents: 3000, Status: models.PayoutPending},
	}
	if err := store.CreatePayouts(ctx, payouts); err != nil {
		t.Fatalf("CreatePayouts failed: %v", err)
	}
	if err := store.SetPayoutBatch(ctx, "BATCH-9", []string{payouts[0].ID, payouts[1].ID}); err != nil {
		t.Fatalf("SetPayoutBatch failed: %v", err)
	}

	t.Run("first delivery claims an unclaimed row", func(t *testing.T) {
		if err := store.MarkPayoutItem(ctx, "BATCH-9", "ITEM-1", models.PayoutSuccess); err != nil {
			t.Fatalf("MarkPayoutItem failed: %v", err)
		}
		rows, _ := store.ListPayoutsByBatch(ctx, "BATCH-9")
		var claimed int
		for _, row := range rows {
			if row.ItemID == "ITEM-1" {
				claimed++
				if row.Status != models.PayoutSuccess {
					t.Errorf("claimed row status = %s, want SUCCESS", row.Status)
				}
			}
		}
		if claimed != 1 {
			t.Errorf("rows claimed by ITEM-1 = %d, want 1", claimed)
		}
	})

	t.Run("redelivery updates in place instead of claiming again", func(t *testing.T) {
		if err := store.MarkPayoutItem(ctx, "BATCH-9", "ITEM-1", models.PayoutSuccess); err != nil {
			t.Fatalf("MarkPayoutItem redelivery failed: %v", err)
		}
		rows, _ := store.ListPayoutsByBatch(ctx, "BATCH-9")
		var unclaimed int
		for _, row := range rows {
			if row.ItemID == "" {
				unclaimed++
				if row.Status != models.PayoutPending {
					t.Errorf("unclaimed row status = %s, want PENDING", row.Status)
				}
			}
		}
		if unclaimed != 1 {
			t.Errorf("unclaimed rows = %d, want 1 (redelivery must not claim)", unclaimed)
		}
	})

	t.Run("unknown item with exhausted batch fails", func(t *testing.T) {
		if err := store.MarkPayoutItem(ctx, "BATCH-9", "ITEM-2", models.PayoutFailed); err != nil {
			t.Fatalf("MarkPayoutItem failed: %v", err)
		}
		err := store.MarkPayoutItem(ctx, "BATCH-9", "ITEM-3", models.PayoutFailed)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("MarkPayoutItem error = %v, want ErrNotFound", err)
		}
	})
}

func TestAttachPayoutItem(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payouts := []*models.Payout{
		{GroupID: "g1", UserID: "alice", AmountCents: 5000, Status: models.PayoutPending},
		{GroupID: "g1", UserID: "bob", AmountCents: 3000, Status: models.PayoutPending},
	}
	if err := store.CreatePayouts(ctx, payouts); err != nil {
		t.Fatalf("CreatePayouts failed: %v", err)
	}
	if err := store.SetPayoutBatch(ctx, "BATCH-4", []string{payouts[0].ID, payouts[1].ID}); err != nil {
		t.Fatalf("SetPayoutBatch failed: %v", err)
	}

	t.Run("attaches the item to its own row", func(t *testing.T) {
		if err := store.AttachPayoutItem(ctx, payouts[1].ID, "BATCH-4", "ITEM-B", models.PayoutFailed); err != nil {
			t.Fatalf("AttachPayoutItem failed: %v", err)
		}

		rows, err := store.ListPayoutsByBatch(ctx, "BATCH-4")
		if err != nil {
			t.Fatalf("ListPayoutsByBatch failed: %v", err)
		}
		for _, row := range rows {
			switch row.ID {
			case payouts[0].ID:
				if row.ItemID != "" || row.Status != models.PayoutPending {
					t.Errorf("alice row = %+v, want untouched PENDING", row)
				}
			case payouts[1].ID:
				if row.ItemID != "ITEM-B" || row.Status != models.PayoutFailed {
					t.Errorf("bob row = %+v, want ITEM-B in FAILED", row)
				}
			}
		}
	})

	t.Run("redelivery updates the same row", func(t *testing.T) {
		if err := store.AttachPayoutItem(ctx, payouts[1].ID, "BATCH-4", "ITEM-B", models.PayoutFailed); err != nil {
			t.Fatalf("AttachPayoutItem redelivery failed: %v", err)
		}
		rows, _ := store.ListPayoutsByGroup(ctx, "g1")
		var claimed int
		for _, row := range rows {
			if row.ItemID != "" {
				claimed++
			}
		}
		if claimed != 1 {
			t.Errorf("claimed rows = %d, want 1", claimed)
		}
	})

	t.Run("unknown row or wrong batch fails", func(t *testing.T) {
		err := store.AttachPayoutItem(ctx, "no-such-row", "BATCH-4", "ITEM-X", models.PayoutSuccess)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("AttachPayoutItem error = %v, want ErrNotFound", err)
		}
		err = store.AttachPayoutItem(ctx, payouts[0].ID, "BATCH-OTHER", "ITEM-A", models.PayoutSuccess)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("AttachPayoutItem with wrong batch error = %v, want ErrNotFound", err)
		}
	})
}
