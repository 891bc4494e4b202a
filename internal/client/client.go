// Package client talks to the transactions REST API on behalf of a signed-in
// user. Every call carries the user's bearer credential and is attempted once.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/httpx"
	"fintrack/internal/log"
	"fintrack/internal/middleware/trace"
)

const (
	MessageUpdated = "Transaction updated successfully"
	MessageDeleted = "Transaction deleted successfully"

	maxErrorBody = 4 << 10
)

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentClient) }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpx.NewPooledClient(),
		logger:     log.New(log.DefaultConfig()).WithComponent(log.ComponentClient),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns the records owned by email.
func (c *Client) List(ctx context.Context, email, credential string) ([]core.Transaction, error) {
	var out []core.Transaction
	path := "/my-transactions?email=" + url.QueryEscape(email)
	if err := c.do(ctx, log.OpList, http.MethodGet, path, credential, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create stores tx and returns the server-assigned id.
func (c *Client) Create(ctx context.Context, tx core.Transaction, credential string) (string, error) {
	tx.ID = ""
	var out struct {
		InsertedID json.RawMessage `json:"insertedId"`
	}
	if err := c.do(ctx, log.OpCreate, http.MethodPost, "/transactions", credential, tx, &out); err != nil {
		return "", err
	}
	id := insertedID(out.InsertedID)
	if id == "" {
		return "", ErrNotAcknowledged
	}
	return id, nil
}

// Get returns one record together with the total of its category.
func (c *Client) Get(ctx context.Context, id, credential string) (core.Detail, error) {
	var out core.Detail
	if err := c.do(ctx, log.OpRead, http.MethodGet, "/transaction/"+url.PathEscape(id), credential, nil, &out); err != nil {
		return core.Detail{}, err
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, id string, u core.TransactionUpdate, credential string) error {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, log.OpUpdate, http.MethodPut, "/transaction/"+url.PathEscape(id), credential, u, &out); err != nil {
		return err
	}
	if out.Message != MessageUpdated {
		return ErrNotAcknowledged
	}
	return nil
}

// Delete removes a record permanently. Callers confirm with the user first.
func (c *Client) Delete(ctx context.Context, id, credential string) error {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, log.OpDelete, http.MethodDelete, "/transaction/"+url.PathEscape(id), credential, nil, &out); err != nil {
		return err
	}
	if out.Message != MessageDeleted {
		return ErrNotAcknowledged
	}
	return nil
}

// Overview returns the owner-wide totals computed by the server.
func (c *Client) Overview(ctx context.Context, credential string) (core.Overview, error) {
	var out core.Overview
	if err := c.do(ctx, log.OpRead, http.MethodGet, "/totalOverview", credential, nil, &out); err != nil {
		return core.Overview{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path, credential string, body, out any) error {
	if strings.TrimSpace(credential) == "" {
		return ErrNoCredential
	}
	return c.send(ctx, op, method, path, credential, body, out)
}

// send performs one request. The bearer header is set only when credential
// is non-empty.
func (c *Client) send(ctx context.Context, op, method, path, credential string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if credential != "" {
		req.Header.Set("authorization", "Bearer "+credential)
	}
	req.Header.Set("Accept", "application/json")
	if id := trace.GetRequestID(ctx); id != "" {
		req.Header.Set(trace.HeaderRequestID, id)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Transactions API unreachable",
			log.FieldOperation, op,
			log.FieldError, err)
		return &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Transactions API call",
		log.FieldOperation, op,
		log.FieldMethod, method,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: "decode " + path, Err: err}
	}
	return nil
}

// errorMessage pulls {"message": "..."} or {"error": "..."} out of an error
// body, falling back to the raw text.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}

// insertedID accepts a JSON string or any other scalar id representation.
func insertedID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// Health calls the API liveness endpoint; no credential is needed.
func (c *Client) Health(ctx context.Context) error {
	return c.send(ctx, log.OpRead, http.MethodGet, "/healthz", "", nil, nil)
}
