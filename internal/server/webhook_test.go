package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/betonem/backend/internal/service"
	"github.com/betonem/backend/internal/storage/sqlite"
)

type fakeVerifier struct {
	verified bool
}

func (v *fakeVerifier) VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) (bool, error) {
	return v.verified, nil
}

func newWebhookServer(t *testing.T, verified bool) *Server {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rec := service.NewReconciler(store, nil, "")
	return New(nil, nil, rec, &fakeVerifier{verified: verified}, nil)
}

func TestWebhookEndpoint(t *testing.T) {
	t.Run("unverified delivery gets 401", func(t *testing.T) {
		srv := newWebhookServer(t, false)
		req := httptest.NewRequest("POST", "/paypal/webhook", strings.NewReader(`{"event_type":"CHECKOUT.ORDER.APPROVED"}`))
		w := httptest.NewRecorder()

		srv.handleWebhook(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("malformed body gets 400", func(t *testing.T) {
		srv := newWebhookServer(t, true)
		req := httptest.NewRequest("POST", "/paypal/webhook", strings.NewReader("not json"))
		w := httptest.NewRecorder()

		srv.handleWebhook(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("unknown event types are acknowledged", func(t *testing.T) {
		srv := newWebhookServer(t, true)
		req := httptest.NewRequest("POST", "/paypal/webhook", strings.NewReader(`{"event_type":"BILLING.SUBSCRIPTION.CREATED"}`))
		w := httptest.NewRecorder()

		srv.handleWebhook(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("event for an unknown order is still acknowledged", func(t *testing.T) {
		srv := newWebhookServer(t, true)
		// A guarded no-op transition: the gateway must not retry forever.
		req := httptest.NewRequest("POST", "/paypal/webhook", strings.NewReader(`{"event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORDER-MISSING"}}`))
		w := httptest.NewRecorder()

		srv.handleWebhook(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})
}
