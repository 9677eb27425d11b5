package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/betonem/backend/internal/metrics"
	"github.com/betonem/backend/internal/models"
	"github.com/betonem/backend/internal/netting"
	"github.com/betonem/backend/internal/paypal"
	"github.com/betonem/backend/internal/storage"
)

const (
	// MinStakeCents and MaxStakeCents bound a wager buy-in: $1 to $10,000.
	MinStakeCents = 100
	MaxStakeCents = 1_000_000

	// coinCents converts group-ledger coins to real cents for cash-outs.
	coinCents = 100

	brandName = "BetOnEm"
)

// handlePattern matches a valid payout handle after the optional leading
// "@" is stripped.
var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,30}$`)

// Gateway is the slice of the payment gateway the reconciler depends on.
// *paypal.Client satisfies it; tests substitute a fake.
type Gateway interface {
	CreateOrder(ctx context.Context, params paypal.CreateOrderParams) (paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (paypal.Capture, error)
	SubmitPayoutBatch(ctx context.Context, senderBatchID, emailSubject, emailMessage string, items []paypal.PayoutItem) (paypal.PayoutBatch, error)
	GetPayoutBatch(ctx context.Context, batchID string) (paypal.BatchStatus, error)
}

// Reconciler keeps local wager, participant, and payout state converged
// with the payment gateway: it creates and captures buy-in orders,
// submits settlement batches, and folds webhook deliveries and batch
// polls back into the store. Every mutation it applies is idempotent, so
// redelivered events and retried requests are safe.
type Reconciler struct {
	store   storage.Store
	gateway Gateway
	appURL  string
}

// NewReconciler creates a reconciler.
func NewReconciler(store storage.Store, gateway Gateway, appURL string) *Reconciler {
	return &Reconciler{store: store, gateway: gateway, appURL: strings.TrimSuffix(appURL, "/")}
}

// CreateWager opens a fixed-stake real-money wager.
func (r *Reconciler) CreateWager(ctx context.Context, creatorID, title string, stakeCents, endsAt int64) (*models.Wager, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > maxTitleLength {
		return nil, ErrInvalidTitle
	}
	if stakeCents < MinStakeCents || stakeCents > MaxStakeCents {
		return nil, ErrInvalidStake
	}
	// Zero means no deadline.
	if endsAt != 0 && endsAt <= time.Now().Unix() {
		return nil, ErrInvalidDeadline
	}

	wager := &models.Wager{
		ID:         uuid.New().String(),
		Title:      title,
		CreatedBy:  creatorID,
		StakeCents: stakeCents,
		Status:     models.WagerOpen,
		EndsAt:     endsAt,
		CreatedAt:  time.Now().Unix(),
	}
	if err := r.store.CreateWager(ctx, wager); err != nil {
		return nil, fmt.Errorf("create wager: %w", err)
	}

	slog.Info("wager created", "wager_id", wager.ID, "created_by", creatorID, "stake_cents", stakeCents)
	return wager, nil
}

// GetWager returns a wager with its participants.
func (r *Reconciler) GetWager(ctx context.Context, wagerID string) (*models.Wager, []*models.WagerParticipant, error) {
	wager, err := r.store.GetWager(ctx, wagerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("get wager: %w", err)
	}
	participants, err := r.store.ListParticipants(ctx, wagerID)
	if err != nil {
		return nil, nil, fmt.Errorf("list participants: %w", err)
	}
	return wager, participants, nil
}

// JoinWager buys a user into a wager: a checkout order is created at the
// gateway and a CREATED participant row records it. The returned URL is
// where the buyer approves the payment. The user must have a payout
// handle on file so a later win can actually be paid out.
func (r *Reconciler) JoinWager(ctx context.Context, wagerID, userID string) (*models.WagerParticipant, string, error) {
	wager, err := r.store.GetWager(ctx, wagerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("get wager: %w", err)
	}
	if wager.Status != models.WagerOpen {
		return nil, "", ErrAlreadySettled
	}
	if wager.EndsAt != 0 && time.Now().Unix() > wager.EndsAt {
		return nil, "", ErrWagerExpired
	}

	if _, err := r.store.GetParticipant(ctx, wagerID, userID); err == nil {
		return nil, "", ErrAlreadyJoined
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, "", fmt.Errorf("check participant: %w", err)
	}

	if _, err := r.payoutHandle(ctx, userID); err != nil {
		return nil, "", err
	}

	order, err := r.gateway.CreateOrder(ctx, paypal.CreateOrderParams{
		AmountCents: wager.StakeCents,
		Description: wager.Title,
		CustomID:    wagerID + ":" + userID,
		BrandName:   brandName,
		ReturnURL:   fmt.Sprintf("%s/wagers/%s?joined=1", r.appURL, wagerID),
		CancelURL:   fmt.Sprintf("%s/wagers/%s?cancelled=1", r.appURL, wagerID),
	})
	if err != nil {
		return nil, "", fmt.Errorf("create buy-in order: %w", err)
	}

	participant := &models.WagerParticipant{
		WagerID:   wagerID,
		UserID:    userID,
		OrderID:   order.ID,
		Status:    models.ParticipantCreated,
		CreatedAt: time.Now().Unix(),
	}
	if err := r.store.CreateParticipant(ctx, participant); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, "", ErrAlreadyJoined
		}
		return nil, "", fmt.Errorf("create participant: %w", err)
	}

	slog.Info("wager joined", "wager_id", wagerID, "user_id", userID, "order_id", order.ID)
	return participant, order.ApproveURL, nil
}

// CaptureBuyIn captures a participant's approved checkout order. If the
// participant is already CAPTURED the stored capture id is returned and
// the gateway is not called again, so a retried capture never charges
// twice.
func (r *Reconciler) CaptureBuyIn(ctx context.Context, wagerID, userID string) (*models.WagerParticipant, error) {
	participant, err := r.store.GetParticipant(ctx, wagerID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	if participant.Status == models.ParticipantCaptured {
		return participant, nil
	}

	capture, err := r.gateway.CaptureOrder(ctx, participant.OrderID)
	if err != nil {
		return nil, fmt.Errorf("capture buy-in: %w", err)
	}

	if capture.Status == "COMPLETED" {
		if err := r.store.MarkParticipantCaptured(ctx, participant.OrderID, capture.ID); err != nil {
			return nil, fmt.Errorf("record capture: %w", err)
		}
		slog.Info("buy-in captured",
			"wager_id", wagerID,
			"user_id", userID,
			"order_id", participant.OrderID,
			"capture_id", capture.ID)
	} else {
		// Capture pending at the gateway; a webhook will finish the job.
		if err := r.store.MarkParticipantApproved(ctx, participant.OrderID); err != nil {
			return nil, fmt.Errorf("record approval: %w", err)
		}
		slog.Warn("buy-in capture not completed",
			"wager_id", wagerID,
			"user_id", userID,
			"order_id", participant.OrderID,
			"gateway_status", capture.Status)
	}

	return r.store.GetParticipant(ctx, wagerID, userID)
}

// SettleWager splits the captured pool equally among the winners and
// submits one payout batch. Validation is all-or-nothing: nothing is
// submitted unless the wager is open, every buy-in is captured, every
// winner is a participant, and every winner has a valid payout handle.
// If the gateway rejects the batch the payout rows are unwound and the
// wager stays OPEN for a retry; each attempt carries a fresh batch tag
// so a retry never collides with an earlier accepted batch.
func (r *Reconciler) SettleWager(ctx context.Context, wagerID, callerID string, winnerIDs []string) ([]*models.Payout, error) {
	wager, err := r.store.GetWager(ctx, wagerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get wager: %w", err)
	}
	if wager.CreatedBy != callerID {
		return nil, ErrNotCreator
	}
	if wager.Status != models.WagerOpen {
		return nil, ErrAlreadySettled
	}
	if len(winnerIDs) == 0 {
		return nil, ErrNoWinners
	}

	participants, err := r.store.ListParticipants(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	byUser := make(map[string]*models.WagerParticipant, len(participants))
	for _, p := range participants {
		if p.Status != models.ParticipantCaptured {
			return nil, fmt.Errorf("%w: user %s is %s", ErrUncapturedParticipants, p.UserID, p.Status)
		}
		byUser[p.UserID] = p
	}

	winners := make([]string, 0, len(winnerIDs))
	seen := make(map[string]bool, len(winnerIDs))
	handles := make(map[string]string, len(winnerIDs))
	for _, winnerID := range winnerIDs {
		if seen[winnerID] {
			continue
		}
		seen[winnerID] = true
		if _, ok := byUser[winnerID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotParticipant, winnerID)
		}
		handle, err := r.payoutHandle(ctx, winnerID)
		if err != nil {
			return nil, err
		}
		winners = append(winners, winnerID)
		handles[winnerID] = handle
	}

	pool := wager.StakeCents * int64(len(participants))
	share := pool / int64(len(winners))

	now := time.Now().Unix()
	payouts := make([]*models.Payout, len(winners))
	items := make([]paypal.PayoutItem, len(winners))
	payoutIDs := make([]string, len(winners))
	for i, winnerID := range winners {
		payouts[i] = &models.Payout{
			ID:          uuid.New().String(),
			WagerID:     wagerID,
			UserID:      winnerID,
			AmountCents: share,
			Status:      models.PayoutPending,
			CreatedAt:   now,
		}
		payoutIDs[i] = payouts[i].ID
		items[i] = paypal.PayoutItem{
			AmountCents:  share,
			Receiver:     handles[winnerID],
			SenderItemID: payouts[i].ID,
			Note:         "Winnings: " + wager.Title,
		}
	}
	if err := r.store.CreatePayouts(ctx, payouts); err != nil {
		return nil, fmt.Errorf("create payouts: %w", err)
	}

	senderBatchID := fmt.Sprintf("%s:%d", wagerID, now)
	batch, err := r.gateway.SubmitPayoutBatch(ctx, senderBatchID,
		"You won a wager!",
		fmt.Sprintf("Your winnings from %q.", wager.Title),
		items)
	if err != nil {
		if delErr := r.store.DeletePayouts(ctx, payoutIDs); delErr != nil {
			slog.Error("failed to unwind payouts after gateway rejection",
				"wager_id", wagerID, "error", delErr)
		}
		return nil, fmt.Errorf("submit payout batch: %w", err)
	}

	if err := r.store.FinalizeWagerSettlement(ctx, wagerID, batch.BatchID, payoutIDs); err != nil {
		if errors.Is(err, storage.ErrWagerSettled) {
			return nil, ErrAlreadySettled
		}
		return nil, fmt.Errorf("finalize settlement: %w", err)
	}

	metrics.PayoutsSubmitted.WithLabelValues("wager").Add(float64(len(payouts)))
	slog.Info("wager settled",
		"wager_id", wagerID,
		"batch_id", batch.BatchID,
		"winners", len(winners),
		"share_cents", share,
		"pool_cents", pool)

	for _, p := range payouts {
		p.BatchID = batch.BatchID
	}
	return payouts, nil
}

// ProposeSettlement computes the minimal set of transfers that would
// clear a group's coin ledger. Nothing is persisted; this is the preview
// behind the settlement screen.
func (r *Reconciler) ProposeSettlement(ctx context.Context, groupID string) ([]netting.Transfer, error) {
	members, err := r.nettingMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}

	transfers, err := netting.Settle(members)
	if err != nil {
		if errors.Is(err, netting.ErrUnbalanced) {
			return nil, ErrLedgerCorruption
		}
		return nil, fmt.Errorf("compute settlement: %w", err)
	}
	return transfers, nil
}

// ExecuteSettlement cashes out a group's creditors for real money: each
// member with a positive coin balance gets one payout of balance * 100
// cents, submitted as a single gateway batch. The coin ledger itself is
// not modified; debtor collection happens outside this service. Because
// balances do not reset, a standing payout row for the group means the
// cash-out already happened and a repeat request is refused. Only a
// fully failed or denied earlier batch clears the way for a retry.
func (r *Reconciler) ExecuteSettlement(ctx context.Context, groupID, callerID string) ([]*models.Payout, error) {
	if _, err := r.store.GetMembership(ctx, groupID, callerID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotAMember
		}
		return nil, fmt.Errorf("check membership: %w", err)
	}

	members, err := r.nettingMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	// Reject a corrupted ledger before any money moves.
	if _, err := netting.Settle(members); err != nil {
		if errors.Is(err, netting.ErrUnbalanced) {
			return nil, ErrLedgerCorruption
		}
		return nil, fmt.Errorf("compute settlement: %w", err)
	}

	existing, err := r.store.ListPayoutsByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group payouts: %w", err)
	}
	for _, p := range existing {
		if p.Status != models.PayoutFailed && p.Status != models.PayoutDenied {
			return nil, fmt.Errorf("%w: payout %s is %s", ErrSettlementExists, p.ID, p.Status)
		}
	}

	now := time.Now().Unix()
	var payouts []*models.Payout
	var items []paypal.PayoutItem
	var payoutIDs []string
	for _, member := range members {
		if member.Balance <= 0 {
			continue
		}
		handle, err := r.payoutHandle(ctx, member.UserID)
		if err != nil {
			return nil, err
		}
		payout := &models.Payout{
			ID:          uuid.New().String(),
			GroupID:     groupID,
			UserID:      member.UserID,
			AmountCents: member.Balance * coinCents,
			Status:      models.PayoutPending,
			CreatedAt:   now,
		}
		payouts = append(payouts, payout)
		payoutIDs = append(payoutIDs, payout.ID)
		items = append(items, paypal.PayoutItem{
			AmountCents:  payout.AmountCents,
			Receiver:     handle,
			SenderItemID: payout.ID,
			Note:         "Group settlement",
		})
	}
	if len(payouts) == 0 {
		return nil, ErrNothingToSettle
	}

	if err := r.store.CreatePayouts(ctx, payouts); err != nil {
		return nil, fmt.Errorf("create payouts: %w", err)
	}

	senderBatchID := fmt.Sprintf("%s:%d", groupID, now)
	batch, err := r.gateway.SubmitPayoutBatch(ctx, senderBatchID,
		"Group settlement payout",
		"Your share of the group settlement.",
		items)
	if err != nil {
		if delErr := r.store.DeletePayouts(ctx, payoutIDs); delErr != nil {
			slog.Error("failed to unwind payouts after gateway rejection",
				"group_id", groupID, "error", delErr)
		}
		return nil, fmt.Errorf("submit payout batch: %w", err)
	}
	if err := r.store.SetPayoutBatch(ctx, batch.BatchID, payoutIDs); err != nil {
		return nil, fmt.Errorf("record payout batch: %w", err)
	}

	metrics.PayoutsSubmitted.WithLabelValues("group").Add(float64(len(payouts)))
	slog.Info("group settlement submitted",
		"group_id", groupID,
		"batch_id", batch.BatchID,
		"payouts", len(payouts))

	for _, p := range payouts {
		p.BatchID = batch.BatchID
	}
	return payouts, nil
}

// SyncPayoutBatch polls the gateway for a batch's item statuses and folds
// them into the local payout rows, then returns the rows as stored. The
// sender item id we submitted is the local payout row id, so each item
// is matched to its own row; items the gateway reports without one fall
// back to positional claiming.
func (r *Reconciler) SyncPayoutBatch(ctx context.Context, batchID string) ([]*models.Payout, error) {
	local, err := r.store.ListPayoutsByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	if len(local) == 0 {
		return nil, ErrNotFound
	}

	status, err := r.gateway.GetPayoutBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("poll payout batch: %w", err)
	}

	for _, item := range status.Items {
		if item.SenderItemID != "" {
			err = r.store.AttachPayoutItem(ctx, item.SenderItemID, batchID, item.ItemID, itemStatus(item.TransactionStatus))
		} else {
			err = r.store.MarkPayoutItem(ctx, batchID, item.ItemID, itemStatus(item.TransactionStatus))
		}
		if err != nil {
			return nil, fmt.Errorf("record item %s: %w", item.ItemID, err)
		}
	}
	return r.store.ListPayoutsByBatch(ctx, batchID)
}

// HandleEvent applies one verified webhook event to the store. Every
// transition is guarded in SQL, so a redelivered event is a no-op.
// Unknown event kinds are acknowledged untouched.
func (r *Reconciler) HandleEvent(ctx context.Context, event paypal.Event) error {
	switch event.Kind {
	case paypal.KindOrderApproved:
		return r.store.MarkParticipantApproved(ctx, event.OrderID)
	case paypal.KindCaptureCompleted:
		return r.store.MarkParticipantCaptured(ctx, event.OrderID, event.CaptureID)
	case paypal.KindCaptureFailed:
		return r.store.MarkParticipantFailed(ctx, event.OrderID)
	case paypal.KindPayoutItemSuccess:
		return r.store.MarkPayoutItem(ctx, event.BatchID, event.ItemID, models.PayoutSuccess)
	case paypal.KindPayoutItemDenied:
		return r.store.MarkPayoutItem(ctx, event.BatchID, event.ItemID, models.PayoutDenied)
	case paypal.KindPayoutItemFailed:
		return r.store.MarkPayoutItem(ctx, event.BatchID, event.ItemID, models.PayoutFailed)
	default:
		slog.Debug("ignoring webhook event", "type", event.Type)
		return nil
	}
}

func (r *Reconciler) nettingMembers(ctx context.Context, groupID string) ([]netting.Member, error) {
	memberships, err := r.store.ListMemberships(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	members := make([]netting.Member, len(memberships))
	for i, m := range memberships {
		members[i] = netting.Member{UserID: m.UserID, Balance: m.Balance}
	}
	return members, nil
}

// payoutHandle fetches and validates a user's payout handle.
func (r *Reconciler) payoutHandle(ctx context.Context, userID string) (string, error) {
	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrMissingPayoutHandle, userID)
		}
		return "", fmt.Errorf("get user: %w", err)
	}
	if user.PayoutHandle == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingPayoutHandle, userID)
	}
	handle := strings.TrimPrefix(user.PayoutHandle, "@")
	if !handlePattern.MatchString(handle) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHandle, user.PayoutHandle)
	}
	return handle, nil
}

// itemStatus folds a gateway transaction status onto the local payout
// state machine. Anything in flight maps to PROCESSING.
func itemStatus(transactionStatus string) models.PayoutStatus {
	switch transactionStatus {
	case "SUCCESS":
		return models.PayoutSuccess
	case "DENIED", "BLOCKED":
		return models.PayoutDenied
	case "FAILED", "RETURNED", "REFUNDED", "REVERSED", "CANCELED":
		return models.PayoutFailed
	default:
		// PENDING, PROCESSING, UNCLAIMED, ONHOLD
		return models.PayoutProcessing
	}
}
