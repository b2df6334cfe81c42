// Package paystack is a small client for the Paystack REST API.
package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrInvalidSignature = errors.New("paystack: invalid webhook signature")

// APIError is a non-2xx answer or a response with status=false.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack: %s (%d)", e.Message, e.StatusCode)
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type InitializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"` // cents
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Charge is the transaction object Paystack returns from verify and sends in charge webhooks.
type Charge struct {
	ID        int64           `json:"id"`
	Status    string          `json:"status"` // success, failed, abandoned, ...
	Reference string          `json:"reference"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	PaidAt    *time.Time      `json:"paid_at"`
	Channel   string          `json:"channel"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

func (c Charge) Succeeded() bool {
	return c.Status == "success"
}

type Refund struct {
	ID     int64  `json:"id"`
	Status string `json:"status"` // pending, processing, processed, failed
	Amount int64  `json:"amount"`
}

func (r Refund) Failed() bool {
	return r.Status == "failed"
}

// Reference is the refund id in the form stored on the transaction.
func (r Refund) Reference() string {
	return fmt.Sprintf("%d", r.ID)
}

func (c *Client) InitializeTransaction(ctx context.Context, in InitializeRequest) (*InitializeResponse, error) {
	var out InitializeResponse
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Charge, error) {
	var out Charge
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRefund refunds amount cents of the transaction with the given reference. A non-empty
// idempotencyKey is sent as the Idempotency-Key header so a resent request is not applied twice.
func (c *Client) CreateRefund(ctx context.Context, reference string, amount int64, idempotencyKey string) (*Refund, error) {
	body := map[string]any{"transaction": reference, "amount": amount}
	var header http.Header
	if idempotencyKey != "" {
		header = http.Header{"Idempotency-Key": []string{idempotencyKey}}
	}
	var out Refund
	if err := c.doWith(ctx, http.MethodPost, "/refund", header, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRefunds returns the refunds already created for the transaction with the given reference.
func (c *Client) ListRefunds(ctx context.Context, reference string) ([]Refund, error) {
	var out []Refund
	if err := c.do(ctx, http.MethodGet, "/refund?transaction="+url.QueryEscape(reference), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifySignature checks the x-paystack-signature header: hex HMAC-SHA512 of the raw body
// keyed with the secret key.
func (c *Client) VerifySignature(body []byte, signature string) error {
	if c.secretKey == "" || signature == "" {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrInvalidSignature
	}
	return nil
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	return c.doWith(ctx, method, path, nil, in, out)
}

func (c *Client) doWith(ctx context.Context, method, path string, header http.Header, in, out any) error {
	if c.secretKey == "" {
		return errors.New("paystack: missing secret key")
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("paystack: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paystack: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("paystack: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return &APIError{StatusCode: res.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("paystack: parse response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 || !env.Status {
		return &APIError{StatusCode: res.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("paystack: parse data: %w", err)
		}
	}
	return nil
}
