// Pi Network Platform API client
//
// Server-side calls authenticate with the app's API key ("Authorization: Key <key>").
// User access tokens obtained by the Pi SDK are verified against /v2/me as bearer tokens.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/desertthunder/chordypi/internal/shared"
)

const (
	PiBaseURL        string = "https://api.minepi.com"
	PiSandboxBaseURL string = "https://api-sandbox.minepi.com"
)

// PiPaymentStatus mirrors the status flags reported by the Pi platform for a payment.
type PiPaymentStatus struct {
	DeveloperApproved   bool `json:"developer_approved"`
	TransactionVerified bool `json:"transaction_verified"`
	DeveloperCompleted  bool `json:"developer_completed"`
	Cancelled           bool `json:"cancelled"`
	UserCancelled       bool `json:"user_cancelled"`
}

// PiTransaction is the blockchain transaction attached to a payment once submitted.
type PiTransaction struct {
	TxID     string `json:"txid"`
	Verified bool   `json:"verified"`
	Link     string `json:"_link"`
}

// PiPayment is a payment as returned by GET /v2/payments/{id}.
type PiPayment struct {
	Identifier  string          `json:"identifier"`
	UserUID     string          `json:"user_uid"`
	Amount      float64         `json:"amount"`
	Memo        string          `json:"memo"`
	Metadata    map[string]any  `json:"metadata"`
	FromAddress string          `json:"from_address"`
	ToAddress   string          `json:"to_address"`
	CreatedAt   string          `json:"created_at"`
	Status      PiPaymentStatus `json:"status"`
	Transaction *PiTransaction  `json:"transaction"`
}

// State collapses the platform's status flags into a single payment state string.
func (p *PiPayment) State() string {
	switch {
	case p.Status.Cancelled || p.Status.UserCancelled:
		return "cancelled"
	case p.Status.DeveloperCompleted || p.Status.TransactionVerified:
		return "completed"
	case p.Status.DeveloperApproved:
		return "approved"
	default:
		return "pending"
	}
}

// TxID returns the transaction id, if the payment has one.
func (p *PiPayment) TxID() string {
	if p.Transaction == nil {
		return ""
	}
	return p.Transaction.TxID
}

// PiUser is the authenticated user returned by /v2/me.
type PiUser struct {
	UID      string   `json:"uid"`
	Username string   `json:"username"`
	Scopes   []string `json:"scopes,omitempty"`
}

// PiService talks to the Pi Network Platform API.
type PiService struct {
	apiKey     string
	baseURL    string
	sandbox    bool
	httpClient *http.Client
}

// NewPiService creates a Pi Platform client. An empty baseURL selects the sandbox or production host.
func NewPiService(cfg shared.PiConfig, client *http.Client) *PiService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = PiBaseURL
		if cfg.Sandbox {
			baseURL = PiSandboxBaseURL
		}
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &PiService{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		sandbox:    cfg.Sandbox,
		httpClient: client,
	}
}

// Name returns the service name.
func (p *PiService) Name() string { return "Pi Network" }

// Sandbox reports whether the client targets the sandbox environment.
func (p *PiService) Sandbox() bool { return p.sandbox }

// Configured reports whether an API key is available for server-side calls.
func (p *PiService) Configured() bool { return p.apiKey != "" }

// BaseURL returns the API host in use.
func (p *PiService) BaseURL() string { return p.baseURL }

func (p *PiService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if !p.Configured() {
		return fmt.Errorf("%w: pi api key", shared.ErrMissingCredentials)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	return decodePiResponse(resp, result)
}

func decodePiResponse(resp *http.Response, result any) error {
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: pi api returned 404", shared.ErrNotFound)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return shared.ErrAuthFailed
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: pi api error (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// GetPayment fetches a payment by its platform identifier.
func (p *PiService) GetPayment(ctx context.Context, paymentID string) (*PiPayment, error) {
	var payment PiPayment
	if err := p.doRequest(ctx, http.MethodGet, "/v2/payments/"+paymentID, nil, &payment); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", shared.ErrPaymentNotFound, paymentID)
		}
		return nil, err
	}
	return &payment, nil
}

// ApprovePayment marks a payment as approved by the developer.
func (p *PiService) ApprovePayment(ctx context.Context, paymentID string) (*PiPayment, error) {
	var payment PiPayment
	if err := p.doRequest(ctx, http.MethodPost, "/v2/payments/"+paymentID+"/approve", map[string]any{}, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CompletePayment acknowledges the blockchain transaction for a payment.
func (p *PiService) CompletePayment(ctx context.Context, paymentID, txid string) (*PiPayment, error) {
	var payment PiPayment
	body := map[string]string{"txid": txid}
	if err := p.doRequest(ctx, http.MethodPost, "/v2/payments/"+paymentID+"/complete", body, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Me verifies a user access token and returns the user it belongs to.
func (p *PiService) Me(ctx context.Context, accessToken string) (*PiUser, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: access token", shared.ErrMissingArgument)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v2/me", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	var user PiUser
	if err := decodePiResponse(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
