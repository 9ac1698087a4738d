// Package fireflyapi is the bearer-token HTTP client for the ledger's write
// API (spec.md §6 "Output: ledger write API"). It implements
// internal/export.Writer.
//
// Grounded on tinoosan-ledger's own net/http usage turned inside-out: the
// teacher never calls out over HTTP (chi/gorilla are server-side routers
// only), so there is no client library among the pack's dependencies to
// reach for; net/http with a bearer Authorization header and a
// context.Context per call is the idiomatic minimum, matching the shape of
// the teacher's own *http.Server fields (explicit timeouts, no retries).
package fireflyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jasmoran/akahu-firefly/internal/export"
)

// Client calls the ledger's account and transaction write endpoints.
// BasePath and APIKey come from FIREFLY_BASE_PATH / FIREFLY_API_KEY
// (spec.md §6 "Environment variables").
type Client struct {
	BasePath   string
	APIKey     string
	HTTPClient *http.Client
}

// New builds a Client with a bounded-timeout http.Client, matching the
// teacher's explicit-timeout-everywhere discipline (cmd/main.go's
// http.Server fields).
func New(basePath, apiKey string) *Client {
	return &Client{
		BasePath: strings.TrimRight(basePath, "/"),
		APIKey:   apiKey,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

var _ export.Writer = (*Client)(nil)

type accountAttributes struct {
	Name          string `json:"name"`
	Type          string `json:"type,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type accountEnvelope struct {
	Data struct {
		ID         string            `json:"id"`
		Attributes accountAttributes `json:"attributes"`
	} `json:"data"`
}

// CreateAccount posts a new account and returns its assigned externalId.
func (c *Client) CreateAccount(ctx context.Context, payload export.AccountPayload) (string, error) {
	body := accountAttributes{
		Name:          payload.Name,
		Type:          payload.Type,
		AccountNumber: payload.AccountNumber,
		Notes:         payload.Notes,
	}
	var env accountEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/v1/accounts", body, &env); err != nil {
		return "", err
	}
	return env.Data.ID, nil
}

// UpdateAccount patches an existing account's mutable fields.
func (c *Client) UpdateAccount(ctx context.Context, externalID string, payload export.AccountPayload) error {
	body := accountAttributes{
		Name:          payload.Name,
		AccountNumber: payload.AccountNumber,
		Notes:         payload.Notes,
	}
	return c.do(ctx, http.MethodPut, "/api/v1/accounts/"+externalID, body, nil)
}

type splitPayload struct {
	Type                string   `json:"type"`
	Description         string   `json:"description"`
	Date                string   `json:"date"`
	Amount              string   `json:"amount"`
	SourceID            string   `json:"source_id"`
	DestinationID       string   `json:"destination_id"`
	ForeignAmount       string   `json:"foreign_amount,omitempty"`
	ForeignCurrencyCode string   `json:"foreign_currency_code,omitempty"`
	CategoryName        string   `json:"category_name,omitempty"`
	ExternalID          string   `json:"external_id,omitempty"`
	Tags                []string `json:"tags,omitempty"`
}

type transactionRequest struct {
	ApplyRules   bool           `json:"apply_rules"`
	FireWebhooks bool           `json:"fire_webhooks"`
	Transactions []splitPayload `json:"transactions"`
}

type transactionEnvelope struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func toSplit(payload export.TransactionPayload) splitPayload {
	var tags []string
	if payload.AkahuIDs != "" {
		tags = strings.Split(payload.AkahuIDs, ",")
	}
	return splitPayload{
		Type:                payload.Kind,
		Description:         payload.Description,
		Date:                payload.Date,
		Amount:              payload.Amount,
		SourceID:            payload.SourceExternalID,
		DestinationID:       payload.DestinationExternalID,
		ForeignAmount:       payload.ForeignAmount,
		ForeignCurrencyCode: payload.ForeignCurrencyCode,
		CategoryName:        payload.CategoryName,
		Tags:                tags,
	}
}

// CreateTransaction posts a new transaction split and returns its assigned
// externalId.
func (c *Client) CreateTransaction(ctx context.Context, payload export.TransactionPayload) (string, error) {
	body := transactionRequest{
		ApplyRules:   true,
		FireWebhooks: true,
		Transactions: []splitPayload{toSplit(payload)},
	}
	var env transactionEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/v1/transactions", body, &env); err != nil {
		return "", err
	}
	return env.Data.ID, nil
}

// UpdateTransaction patches an existing transaction's split.
func (c *Client) UpdateTransaction(ctx context.Context, externalID string, payload export.TransactionPayload) error {
	body := transactionRequest{
		ApplyRules:   true,
		FireWebhooks: true,
		Transactions: []splitPayload{toSplit(payload)},
	}
	return c.do(ctx, http.MethodPut, "/api/v1/transactions/"+externalID, body, nil)
}

// do sends one authenticated JSON request and decodes the response into
// out (if non-nil), reading the body into the error on a non-2xx status so
// callers can log the remote response (spec.md §7 RemoteWrite failure).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BasePath+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %s: %s", method, path, strconv.Itoa(resp.StatusCode), string(respBody))
	}
	if readErr != nil {
		return fmt.Errorf("read response body: %w", readErr)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
