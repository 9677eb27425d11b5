// Package paypal is a REST client for the PayPal API: OAuth2
// client-credentials tokens, checkout orders, batch payouts, and webhook
// signature verification.
package paypal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/betonem/backend/internal/metrics"
)

const (
	// DefaultSandboxURL is the PayPal sandbox environment.
	DefaultSandboxURL = "https://api-m.sandbox.paypal.com"
	// DefaultProductionURL is the PayPal live environment.
	DefaultProductionURL = "https://api.paypal.com"

	// tokenExpiryMargin is subtracted from the token lifetime so a token
	// is never used within a minute of its expiry.
	tokenExpiryMargin = 60 * time.Second
)

// Config holds PayPal client settings.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	WebhookID    string
	Timeout      int // seconds
}

// Client is the PayPal REST client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	webhookID  string
	httpClient *http.Client
	tokens     *tokenProvider
}

// NewClient creates a PayPal client.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultSandboxURL
	}
	timeout := 30 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	return &Client{
		baseURL:    baseURL,
		webhookID:  cfg.WebhookID,
		httpClient: httpClient,
		tokens: &tokenProvider{
			tokenURL:     baseURL + "/v1/oauth2/token",
			clientID:     cfg.ClientID,
			clientSecret: cfg.ClientSecret,
			httpClient:   httpClient,
		},
	}
}

// APIError is a non-2xx response from the PayPal API. The gateway status
// code and message are preserved so financial failures are never swallowed.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal: API error %d: %s", e.Status, e.Message)
}

// tokenProvider caches an OAuth2 client-credentials token until shortly
// before its expiry and refreshes it transparently. It holds its expiry
// state internally; no package-level cache exists.
type tokenProvider struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// GetToken returns a valid access token, fetching a fresh one if the
// cached token is missing or expired. A fetch failure is returned to the
// caller; there is no silent retry.
func (tp *tokenProvider) GetToken(ctx context.Context) (string, error) {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.token != "" && time.Now().Before(tp.expiresAt) {
		return tp.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tp.tokenURL,
		strings.NewReader(url.Values{"grant_type": {"client_credentials"}}.Encode()))
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(tp.clientID + ":" + tp.clientSecret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := tp.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Message: redactSecrets(string(body))}
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("paypal: decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("paypal: token response missing access_token")
	}
	if tok.ExpiresIn == 0 {
		tok.ExpiresIn = 32400 // PayPal default: 9 hours
	}

	tp.token = tok.AccessToken
	tp.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenExpiryMargin)
	return tp.token, nil
}

var secretPattern = regexp.MustCompile(`("access_token"|"client_id"|"client_secret")\s*:\s*"[^"]+"`)

// redactSecrets masks credential fields before an error body is surfaced.
func redactSecrets(s string) string {
	return secretPattern.ReplaceAllString(s, `$1:"***"`)
}

// do issues an authenticated JSON request against the PayPal API and
// returns the raw response body. Token acquisition failure is fatal to the
// call.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("paypal: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	observe := func(outcome string) {
		metrics.GatewayRequests.WithLabelValues(operationLabel(method, path), outcome).
			Observe(time.Since(start).Seconds())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observe("error")
		return nil, fmt.Errorf("paypal: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		observe("error")
		return nil, fmt.Errorf("paypal: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observe("error")
		msg := gatewayMessage(respBody)
		return nil, &APIError{Status: resp.StatusCode, Message: redactSecrets(msg)}
	}
	observe("ok")
	return respBody, nil
}

// operationLabel buckets request paths into stable metric labels.
func operationLabel(method, path string) string {
	switch {
	case strings.HasSuffix(path, "/capture"):
		return "capture_order"
	case strings.HasPrefix(path, "/v2/checkout/orders"):
		return "create_order"
	case strings.HasPrefix(path, "/v1/payments/payouts"):
		if method == http.MethodGet {
			return "get_payout_batch"
		}
		return "submit_payout_batch"
	case strings.HasPrefix(path, "/v1/notifications"):
		return "verify_webhook"
	default:
		return "other"
	}
}

// gatewayMessage pulls the human-readable message out of a PayPal error
// body, falling back to the raw body.
func gatewayMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Name    string `json:"name"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		if e.Name != "" {
			return e.Name + ": " + e.Message
		}
		return e.Message
	}
	return string(body)
}

// centsValue formats an integer cent amount the way PayPal expects
// ("12.50").
func centsValue(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
