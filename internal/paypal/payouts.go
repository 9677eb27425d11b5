package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// PayoutItem is one recipient in a payout batch.
type PayoutItem struct {
	AmountCents int64
	// Receiver is the recipient's payout handle. A leading "@" is
	// stripped before submission.
	Receiver string
	// SenderItemID is the caller's correlation id for this item.
	SenderItemID string
	Note         string
}

// PayoutBatch is the submission acknowledgement for a payout batch.
type PayoutBatch struct {
	BatchID string
	Status  string
}

// BatchStatus is the gateway's view of a payout batch and its items.
type BatchStatus struct {
	BatchID string
	Status  string
	Items   []BatchItem
}

// BatchItem is one item inside a polled payout batch.
type BatchItem struct {
	ItemID            string
	TransactionStatus string
	SenderItemID      string
}

// SubmitPayoutBatch submits a single batch payout. senderBatchID must be
// unique per settlement attempt so a retried settlement never collides
// with a previously accepted batch.
func (c *Client) SubmitPayoutBatch(ctx context.Context, senderBatchID, emailSubject, emailMessage string, items []PayoutItem) (PayoutBatch, error) {
	reqItems := make([]map[string]any, len(items))
	for i, item := range items {
		reqItems[i] = map[string]any{
			"recipient_type": "USER_HANDLE",
			"amount": map[string]string{
				"value":    centsValue(item.AmountCents),
				"currency": "USD",
			},
			"receiver":       strings.TrimPrefix(item.Receiver, "@"),
			"sender_item_id": item.SenderItemID,
			"note":           item.Note,
		}
	}

	reqBody := map[string]any{
		"sender_batch_header": map[string]string{
			"sender_batch_id": senderBatchID,
			"email_subject":   emailSubject,
			"email_message":   emailMessage,
		},
		"items": reqItems,
	}

	body, err := c.do(ctx, http.MethodPost, "/v1/payments/payouts", reqBody)
	if err != nil {
		return PayoutBatch{}, fmt.Errorf("submit payout batch %s: %w", senderBatchID, err)
	}

	var resp struct {
		BatchHeader struct {
			PayoutBatchID string `json:"payout_batch_id"`
			BatchStatus   string `json:"batch_status"`
		} `json:"batch_header"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return PayoutBatch{}, fmt.Errorf("paypal: decode payout batch: %w", err)
	}
	return PayoutBatch{
		BatchID: resp.BatchHeader.PayoutBatchID,
		Status:  resp.BatchHeader.BatchStatus,
	}, nil
}

// GetPayoutBatch polls the status of a previously submitted payout batch.
func (c *Client) GetPayoutBatch(ctx context.Context, batchID string) (BatchStatus, error) {
	path := fmt.Sprintf("/v1/payments/payouts/%s", url.PathEscape(batchID))
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return BatchStatus{}, fmt.Errorf("get payout batch %s: %w", batchID, err)
	}

	var resp struct {
		BatchHeader struct {
			PayoutBatchID string `json:"payout_batch_id"`
			BatchStatus   string `json:"batch_status"`
		} `json:"batch_header"`
		Items []struct {
			PayoutItemID      string `json:"payout_item_id"`
			TransactionStatus string `json:"transaction_status"`
			PayoutItem        struct {
				SenderItemID string `json:"sender_item_id"`
			} `json:"payout_item"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return BatchStatus{}, fmt.Errorf("paypal: decode batch status: %w", err)
	}

	status := BatchStatus{
		BatchID: resp.BatchHeader.PayoutBatchID,
		Status:  resp.BatchHeader.BatchStatus,
	}
	for _, item := range resp.Items {
		status.Items = append(status.Items, BatchItem{
			ItemID:            item.PayoutItemID,
			TransactionStatus: item.TransactionStatus,
			SenderItemID:      item.PayoutItem.SenderItemID,
		})
	}
	return status, nil
}
