package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/betonem/backend/internal/auth"
	"github.com/betonem/backend/internal/middleware"
	"github.com/betonem/backend/internal/service"
)

// WebhookVerifier checks inbound gateway webhook signatures.
// *paypal.Client satisfies it.
type WebhookVerifier interface {
	VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) (bool, error)
}

// Server holds the handler dependencies.
type Server struct {
	markets    *service.MarketService
	groups     *service.GroupService
	reconciler *service.Reconciler
	verifier   WebhookVerifier
	jwt        *auth.JWTManager
}

// New creates a server.
func New(markets *service.MarketService, groups *service.GroupService, reconciler *service.Reconciler, verifier WebhookVerifier, jwt *auth.JWTManager) *Server {
	return &Server{
		markets:    markets,
		groups:     groups,
		reconciler: reconciler,
		verifier:   verifier,
		jwt:        jwt,
	}
}

// Routes builds the full route table. API routes require a Bearer token;
// the webhook endpoint authenticates by signature instead.
func (s *Server) Routes() http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("POST /api/groups/{id}/join", s.handleJoinGroup)
	api.HandleFunc("GET /api/groups/{id}/balances", s.handleGroupBalances)
	api.HandleFunc("GET /api/groups/{id}/settlement", s.handleProposeSettlement)
	api.HandleFunc("POST /api/groups/{id}/settlement", s.handleExecuteSettlement)

	api.HandleFunc("POST /api/markets", s.handleCreateMarket)
	api.HandleFunc("GET /api/markets/{id}", s.handleGetMarket)
	api.HandleFunc("GET /api/markets/{id}/preview", s.handlePreviewBet)
	api.HandleFunc("POST /api/markets/{id}/bets", s.handlePlaceBet)
	api.HandleFunc("POST /api/markets/{id}/resolve", s.handleResolveMarket)

	api.HandleFunc("POST /api/wagers", s.handleCreateWager)
	api.HandleFunc("GET /api/wagers/{id}", s.handleGetWager)
	api.HandleFunc("POST /api/wagers/{id}/join", s.handleJoinWager)
	api.HandleFunc("POST /api/wagers/{id}/capture", s.handleCaptureBuyIn)
	api.HandleFunc("POST /api/wagers/{id}/settle", s.handleSettleWager)
	api.HandleFunc("GET /api/payouts/{batchID}", s.handleSyncPayoutBatch)

	mux := http.NewServeMux()
	mux.Handle("/api/", middleware.RequireAuth(s.jwt, api))
	mux.HandleFunc("POST /paypal/webhook", s.handleWebhook)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return middleware.Logging(middleware.CORS(mux))
}
