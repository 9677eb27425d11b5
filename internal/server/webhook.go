package server

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/betonem/backend/internal/metrics"
	"github.com/betonem/backend/internal/paypal"
)

// maxWebhookBody bounds webhook payloads at 1 MiB.
const maxWebhookBody = 1 << 20

// handleWebhook is the gateway event intake. The signature is verified
// before anything else; an unverifiable delivery gets a 401 so the
// gateway retries it. Once verified, the delivery is always acknowledged
// with 200, even if applying it fails locally, because every local
// transition is idempotent and the next delivery or a batch poll will
// converge the state.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	verified, err := s.verifier.VerifyWebhookSignature(r.Context(), r.Header, rawBody)
	if err != nil || !verified {
		if err != nil {
			slog.Warn("webhook verification error", "error", err)
		}
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "signature verification failed"})
		return
	}

	event, err := paypal.ParseEvent(rawBody)
	if err != nil {
		slog.Warn("malformed webhook body", "error", err)
		metrics.WebhookEvents.WithLabelValues("unknown", "error").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed event"})
		return
	}

	outcome := "applied"
	if event.Kind == paypal.KindIgnored {
		outcome = "ignored"
	} else if err := s.reconciler.HandleEvent(r.Context(), event); err != nil {
		slog.Error("failed to apply webhook event",
			"type", event.Type,
			"order_id", event.OrderID,
			"batch_id", event.BatchID,
			"error", err)
		outcome = "error"
	}
	metrics.WebhookEvents.WithLabelValues(event.Type, outcome).Inc()

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
