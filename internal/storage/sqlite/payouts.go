package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/betonem/backend/internal/models"
	"github.com/betonem/backend/internal/storage"
)

// CreateWager persists a new real-money wager.
func (s *SQLiteStore) CreateWager(ctx context.Context, wager *models.Wager) error {
	if wager.ID == "" {
		wager.ID = uuid.New().String()
	}
	if wager.CreatedAt == 0 {
		wager.CreatedAt = time.Now().Unix()
	}
	if wager.Status == "" {
		wager.Status = models.WagerOpen
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wagers (id, title, created_by, stake_cents, status, ends_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		wager.ID, wager.Title, wager.CreatedBy, wager.StakeCents,
		string(wager.Status), wager.EndsAt, wager.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert wager: %w", err)
	}
	return nil
}

// GetWager retrieves a wager by ID.
func (s *SQLiteStore) GetWager(ctx context.Context, wagerID string) (*models.Wager, error) {
	wager := &models.Wager{}
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_by, stake_cents, status, ends_at, created_at
		 FROM wagers WHERE id = ?`,
		wagerID,
	).Scan(&wager.ID, &wager.Title, &wager.CreatedBy, &wager.StakeCents,
		&status, &wager.EndsAt, &wager.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("wager %s: %w", wagerID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	wager.Status = models.WagerStatus(status)
	return wager, nil
}

// CreateParticipant inserts a participant order row.
func (s *SQLiteStore) CreateParticipant(ctx context.Context, p *models.WagerParticipant) error {
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	if p.Status == "" {
		p.Status = models.ParticipantCreated
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wager_participants (wager_id, user_id, order_id, status, capture_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.WagerID, p.UserID, p.OrderID, string(p.Status), p.CaptureID, p.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("participant %s/%s: %w", p.WagerID, p.UserID, storage.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert participant: %w", err)
	}
	return nil
}

// GetParticipant retrieves one (wager, user) participant row.
func (s *SQLiteStore) GetParticipant(ctx context.Context, wagerID, userID string) (*models.WagerParticipant, error) {
	p := &models.WagerParticipant{}
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT wager_id, user_id, order_id, status, capture_id, created_at
		 FROM wager_participants WHERE wager_id = ? AND user_id = ?`,
		wagerID, userID,
	).Scan(&p.WagerID, &p.UserID, &p.OrderID, &status, &p.CaptureID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("participant %s/%s: %w", wagerID, userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	p.Status = models.ParticipantStatus(status)
	return p, nil
}

// ListParticipants returns all participant rows for a wager.
func (s *SQLiteStore) ListParticipants(ctx context.Context, wagerID string) ([]*models.WagerParticipant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT wager_id, user_id, order_id, status, capture_id, created_at
		 FROM wager_participants WHERE wager_id = ? ORDER BY created_at, user_id`,
		wagerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []*models.WagerParticipant
	for rows.Next() {
		p := &models.WagerParticipant{}
		var status string
		if err := rows.Scan(&p.WagerID, &p.UserID, &p.OrderID, &status, &p.CaptureID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.Status = models.ParticipantStatus(status)
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}

// MarkParticipantApproved moves a CREATED participant to APPROVED. The
// status guard makes redelivery a no-op and never downgrades a captured or
// failed participant.
func (s *SQLiteStore) MarkParticipantApproved(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE wager_participants SET status = ? WHERE order_id = ? AND status = ?",
		string(models.ParticipantApproved), orderID, string(models.ParticipantCreated),
	)
	if err != nil {
		return fmt.Errorf("failed to mark participant approved: %w", err)
	}
	return nil
}

// MarkParticipantCaptured records the capture. Once CAPTURED the row never
// changes again, so replayed capture events are no-ops and the capture ID
// stays immutable.
func (s *SQLiteStore) MarkParticipantCaptured(ctx context.Context, orderID, captureID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE wager_participants SET status = ?, capture_id = ? WHERE order_id = ? AND status != ?",
		string(models.ParticipantCaptured), captureID, orderID, string(models.ParticipantCaptured),
	)
	if err != nil {
		return fmt.Errorf("failed to mark participant captured: %w", err)
	}
	return nil
}

// MarkParticipantFailed records a capture denial or refund.
func (s *SQLiteStore) MarkParticipantFailed(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE wager_participants SET status = ? WHERE order_id = ?",
		string(models.ParticipantFailed), orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark participant failed: %w", err)
	}
	return nil
}

// CreatePayouts inserts PENDING payout rows in one transaction.
func (s *SQLiteStore) CreatePayouts(ctx context.Context, payouts []*models.Payout) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range payouts {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.CreatedAt == 0 {
			p.CreatedAt = time.Now().Unix()
		}
		if p.Status == "" {
			p.Status = models.PayoutPending
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO payouts (id, wager_id, group_id, user_id, amount_cents, status, batch_id, item_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.WagerID, p.GroupID, p.UserID, p.AmountCents,
			string(p.Status), p.BatchID, p.ItemID, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payout: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeletePayouts removes payout rows (settlement unwind).
func (s *SQLiteStore) DeletePayouts(ctx context.Context, payoutIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range payoutIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM payouts WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete payout %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// FinalizeWagerSettlement stamps the batch ID on the payout rows and flips
// the wager to SETTLED atomically. The status guard catches a concurrent
// settlement.
func (s *SQLiteStore) FinalizeWagerSettlement(ctx context.Context, wagerID, batchID string, payoutIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE wagers SET status = ? WHERE id = ? AND status = ?",
		string(models.WagerSettled), wagerID, string(models.WagerOpen),
	)
	if err != nil {
		return fmt.Errorf("failed to settle wager: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrWagerSettled
	}

	for _, id := range payoutIDs {
		if _, err := tx.ExecContext(ctx, "UPDATE payouts SET batch_id = ? WHERE id = ?", batchID, id); err != nil {
			return fmt.Errorf("failed to stamp batch on payout %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetPayoutBatch stamps the batch ID on payout rows (group cash-outs).
func (s *SQLiteStore) SetPayoutBatch(ctx context.Context, batchID string, payoutIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range payoutIDs {
		if _, err := tx.ExecContext(ctx, "UPDATE payouts SET batch_id = ? WHERE id = ?", batchID, id); err != nil {
			return fmt.Errorf("failed to stamp batch on payout %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// ListPayoutsByBatch returns all payout rows in one gateway batch.
func (s *SQLiteStore) ListPayoutsByBatch(ctx context.Context, batchID string) ([]*models.Payout, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, wager_id, group_id, user_id, amount_cents, status, batch_id, item_id, created_at
		 FROM payouts WHERE batch_id = ? ORDER BY created_at, id`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*models.Payout
	for rows.Next() {
		p := &models.Payout{}
		var status string
		if err := rows.Scan(&p.ID, &p.WagerID, &p.GroupID, &p.UserID, &p.AmountCents,
			&status, &p.BatchID, &p.ItemID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		p.Status = models.PayoutStatus(status)
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payouts: %w", err)
	}
	return payouts, nil
}

// ListPayoutsByGroup returns all cash-out payout rows for one group.
func (s *SQLiteStore) ListPayoutsByGroup(ctx context.Context, groupID string) ([]*models.Payout, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, wager_id, group_id, user_id, amount_cents, status, batch_id, item_id, created_at
		 FROM payouts WHERE group_id = ? ORDER BY created_at, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list group payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*models.Payout
	for rows.Next() {
		p := &models.Payout{}
		var status string
		if err := rows.Scan(&p.ID, &p.WagerID, &p.GroupID, &p.UserID, &p.AmountCents,
			&status, &p.BatchID, &p.ItemID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		p.Status = models.PayoutStatus(status)
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payouts: %w", err)
	}
	return payouts, nil
}

// AttachPayoutItem records a gateway item status on the row whose ID came
// back as the sender item id. The batch filter guards against a stray id
// from another settlement.
func (s *SQLiteStore) AttachPayoutItem(ctx context.Context, payoutID, batchID, itemID string, status models.PayoutStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE payouts SET item_id = ?, status = ? WHERE id = ? AND batch_id = ?",
		itemID, string(status), payoutID, batchID,
	)
	if err != nil {
		return fmt.Errorf("failed to attach payout item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("payout %s in batch %s: %w", payoutID, batchID, storage.ErrNotFound)
	}
	return nil
}

// MarkPayoutItem records a gateway payout-item status. When the item ID is
// already attached to a row, the row is updated in place (idempotent).
// Otherwise the first unclaimed row in the batch gets the item ID; webhook
// events can arrive before a batch status poll ever attached item IDs.
func (s *SQLiteStore) MarkPayoutItem(ctx context.Context, batchID, itemID string, status models.PayoutStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM payouts WHERE item_id = ?", itemID).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if batchID == "" {
			return fmt.Errorf("payout item %s: %w", itemID, storage.ErrNotFound)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE payouts SET item_id = ?, status = ?
			 WHERE id = (SELECT id FROM payouts WHERE batch_id = ? AND item_id = '' ORDER BY created_at, id LIMIT 1)`,
			itemID, string(status), batchID,
		)
		if err != nil {
			return fmt.Errorf("failed to claim payout row: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("payout batch %s has no unclaimed rows: %w", batchID, storage.ErrNotFound)
		}
	case err != nil:
		return fmt.Errorf("failed to look up payout item: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			"UPDATE payouts SET status = ? WHERE item_id = ?",
			string(status), itemID,
		); err != nil {
			return fmt.Errorf("failed to update payout item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
