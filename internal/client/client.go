// Package client speaks the agent host's HTTP API: streamed chat exchanges
// framed as line-oriented records, plus the non-streamed confirmation, audit,
// and policy operations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reins/internal/audit"
	"reins/internal/policy"
	"reins/internal/protocol"
)

const (
	defaultRequestTimeout = 30 * time.Second
	requestIDHeader       = "X-Request-Id"
)

// ErrBaseURLRequired indicates a client constructed without a host address.
var ErrBaseURLRequired = errors.New("agent host base url is required")

// Config configures the host client.
type Config struct {
	BaseURL string
	// HTTPClient overrides the default client. Streamed requests must not
	// carry a client-level timeout: a confirmation can pause an exchange
	// indefinitely, so only the context bounds them.
	HTTPClient *http.Client
	// RequestTimeout bounds non-streamed operations.
	RequestTimeout time.Duration
	// APIToken, when set, is sent as a bearer token on every request.
	APIToken string
	Logger   *zap.Logger
}

// Client is the agent host API client.
type Client struct {
	baseURL        string
	http           *http.Client
	requestTimeout time.Duration
	apiToken       string
	logger         *zap.Logger
}

// New constructs a client with sane defaults.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrBaseURLRequired
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:        base,
		http:           httpClient,
		requestTimeout: requestTimeout,
		apiToken:       strings.TrimSpace(cfg.APIToken),
		logger:         logger,
	}, nil
}

// OpenSession creates a new conversation on the host and returns its id.
func (c *Client) OpenSession(ctx context.Context) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sessions", nil, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", errors.New("open session: host returned no session id")
	}
	return out.SessionID, nil
}

// SendMessage opens a streamed exchange delivering one user message with any
// stabilized attachments.
func (c *Client) SendMessage(ctx context.Context, sessionID, content string, attachments []protocol.Attachment, params protocol.ModelParams) (*StreamTransport, error) {
	body := struct {
		Content     string                `json:"content"`
		Attachments []protocol.Attachment `json:"attachments,omitempty"`
		Params      protocol.ModelParams  `json:"params"`
	}{Content: content, Attachments: attachments, Params: params}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal send message: %w", err)
	}
	return c.openStream(ctx, "send message", "/v1/sessions/"+url.PathEscape(sessionID)+"/messages", payload)
}

// Continue opens the streamed exchange that resumes a loop paused on an
// approved confirmation.
func (c *Client) Continue(ctx context.Context, sessionID string, cont protocol.Continuation) (*StreamTransport, error) {
	payload, err := cont.MarshalBody()
	if err != nil {
		return nil, err
	}
	return c.openStream(ctx, "continue", "/v1/sessions/"+url.PathEscape(sessionID)+"/continue", payload)
}

// ResolveConfirmation reports a non-approving resolution (rejection or
// expiry) to the host without opening an execution stream.
func (c *Client) ResolveConfirmation(ctx context.Context, confirmationID string, approved bool, reason string) error {
	body := struct {
		Approved bool   `json:"approved"`
		Reason   string `json:"reason,omitempty"`
	}{Approved: approved, Reason: reason}
	return c.doJSON(ctx, http.MethodPost, "/v1/confirmations/"+url.PathEscape(confirmationID)+"/resolve", body, nil)
}

// PendingConfirmations lists confirmations still waiting for an operator.
func (c *Client) PendingConfirmations(ctx context.Context) ([]protocol.ConfirmationRequest, error) {
	var out struct {
		Confirmations []protocol.ConfirmationRequest `json:"confirmations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/confirmations?status=pending", nil, &out); err != nil {
		return nil, err
	}
	return out.Confirmations, nil
}

// AuditLog fetches the host-side audit trail of resolved confirmations.
func (c *Client) AuditLog(ctx context.Context, limit int) ([]audit.Entry, error) {
	path := "/v1/audit"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var out struct {
		Entries []audit.Entry `json:"entries"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// FetchPolicy retrieves the host's current risk policy.
func (c *Client) FetchPolicy(ctx context.Context) (policy.Document, error) {
	var doc policy.Document
	if err := c.doJSON(ctx, http.MethodGet, "/v1/policy", nil, &doc); err != nil {
		return policy.Document{}, err
	}
	return doc, nil
}

// UpdatePolicy validates and uploads a risk policy document.
func (c *Client) UpdatePolicy(ctx context.Context, doc policy.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}
	if err := policy.ValidateDocument(raw); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPut, "/v1/policy", json.RawMessage(raw), nil)
}

// openStream performs the handshake of a streamed operation and hands the
// open body to a StreamTransport.
func (c *Client) openStream(ctx context.Context, op, path string, payload []byte) (*StreamTransport, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	requestID := uuid.NewString()
	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set(requestIDHeader, requestID)
	c.setAuth(req)

	c.logger.Debug("opening stream",
		zap.String("op", op),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := checkStreamResponse(op, resp); err != nil {
		cancel()
		return nil, err
	}

	return newStreamTransport(streamCtx, cancel, resp.Body, c.logger), nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
}

// doJSON performs one non-streamed request with the client's timeout.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	requestID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(requestIDHeader, requestID)
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Op:         method + " " + path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
