package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/betonem/backend/internal/auth"
	"github.com/betonem/backend/internal/config"
	"github.com/betonem/backend/internal/paypal"
	"github.com/betonem/backend/internal/server"
	"github.com/betonem/backend/internal/service"
	"github.com/betonem/backend/internal/storage/sqlite"
	"github.com/betonem/backend/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	gateway := paypal.NewClient(paypal.Config{
		BaseURL:      cfg.PayPal.BaseURL,
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		WebhookID:    cfg.PayPal.WebhookID,
		Timeout:      cfg.PayPal.Timeout,
	})
	slog.Info("Gateway client initialized", "base_url", cfg.PayPal.BaseURL)

	srv := server.New(
		service.NewMarketService(store),
		service.NewGroupService(store),
		service.NewReconciler(store, gateway, cfg.AppURL),
		gateway,
		auth.NewJWTManager(cfg.JWT.Secret),
	)

	// Wrap with h2c so HTTP/2 clients work without TLS behind the proxy.
	handler := h2c.NewHandler(srv.Routes(), &http2.Server{})

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Server starting", "address", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
