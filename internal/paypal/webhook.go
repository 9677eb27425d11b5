package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// VerifyWebhookSignature checks an inbound webhook delivery against
// PayPal's verification API using the five transmission headers and the
// webhook id registered for this listener. An event must never be
// processed unless this returns true.
//
// With no webhook id configured (local development), verification is
// skipped with a warning.
func (c *Client) VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) (bool, error) {
	if c.webhookID == "" {
		slog.Warn("PAYPAL_WEBHOOK_ID not set, skipping webhook verification")
		return true, nil
	}

	authAlgo := headers.Get("Paypal-Auth-Algo")
	certURL := headers.Get("Paypal-Cert-Url")
	transmissionID := headers.Get("Paypal-Transmission-Id")
	transmissionSig := headers.Get("Paypal-Transmission-Sig")
	transmissionTime := headers.Get("Paypal-Transmission-Time")

	if authAlgo == "" || certURL == "" || transmissionID == "" || transmissionSig == "" || transmissionTime == "" {
		return false, fmt.Errorf("paypal: missing webhook signature headers")
	}

	reqBody := map[string]any{
		"auth_algo":         authAlgo,
		"cert_url":          certURL,
		"transmission_id":   transmissionID,
		"transmission_sig":  transmissionSig,
		"transmission_time": transmissionTime,
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(rawBody),
	}

	body, err := c.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", reqBody)
	if err != nil {
		return false, fmt.Errorf("verify webhook signature: %w", err)
	}

	var resp struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("paypal: decode verification response: %w", err)
	}
	return resp.VerificationStatus == "SUCCESS", nil
}

// EventKind enumerates the webhook event families this backend acts on.
// Everything else parses as KindIgnored and is acknowledged untouched.
type EventKind int

const (
	KindIgnored EventKind = iota
	KindOrderApproved
	KindCaptureCompleted
	KindCaptureFailed
	KindPayoutItemSuccess
	KindPayoutItemDenied
	KindPayoutItemFailed
)

// Event is the typed form of an inbound webhook payload. Only the fields
// relevant to the event's kind are populated.
type Event struct {
	Kind EventKind
	// Type is the raw gateway event type, kept for logging.
	Type string

	OrderID   string
	CaptureID string
	ItemID    string
	BatchID   string
}

// ParseEvent maps a raw webhook body onto the tagged Event union.
// Unrecognized event types yield KindIgnored, not an error; a malformed
// body is an error.
func ParseEvent(raw []byte) (Event, error) {
	var envelope struct {
		EventType string `json:"event_type"`
		Resource  struct {
			ID                string `json:"id"`
			PayoutItemID      string `json:"payout_item_id"`
			PayoutBatchID     string `json:"payout_batch_id"`
			SupplementaryData struct {
				RelatedIDs struct {
					OrderID string `json:"order_id"`
				} `json:"related_ids"`
			} `json:"supplementary_data"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Event{}, fmt.Errorf("paypal: decode webhook event: %w", err)
	}

	event := Event{Type: envelope.EventType}
	switch envelope.EventType {
	case "CHECKOUT.ORDER.APPROVED":
		event.Kind = KindOrderApproved
		event.OrderID = envelope.Resource.ID
	case "PAYMENT.CAPTURE.COMPLETED":
		event.Kind = KindCaptureCompleted
		event.CaptureID = envelope.Resource.ID
		event.OrderID = envelope.Resource.SupplementaryData.RelatedIDs.OrderID
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.REFUNDED":
		event.Kind = KindCaptureFailed
		event.OrderID = envelope.Resource.SupplementaryData.RelatedIDs.OrderID
	case "PAYMENT.PAYOUTS-ITEM.SUCCEEDED", "PAYMENT.PAYOUTS-ITEM.SUCCESS":
		event.Kind = KindPayoutItemSuccess
		event.ItemID = envelope.Resource.PayoutItemID
		event.BatchID = envelope.Resource.PayoutBatchID
	case "PAYMENT.PAYOUTS-ITEM.DENIED":
		event.Kind = KindPayoutItemDenied
		event.ItemID = envelope.Resource.PayoutItemID
		event.BatchID = envelope.Resource.PayoutBatchID
	case "PAYMENT.PAYOUTS-ITEM.FAILED":
		event.Kind = KindPayoutItemFailed
		event.ItemID = envelope.Resource.PayoutItemID
		event.BatchID = envelope.Resource.PayoutBatchID
	default:
		event.Kind = KindIgnored
	}
	return event, nil
}
