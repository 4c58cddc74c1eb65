// Package transport sends protocol requests to the identity server and
// decodes the response envelope. It is deliberately thin: thread
// continuity and flow decisions live a layer up, in pkg/authn.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/msg"
)

// DefaultTimeout bounds requests that do not override it.
const DefaultTimeout = 30 * time.Second

// ErrNoResponse is returned when the server answers without a usable
// message body.
var ErrNoResponse = errors.New("no response from identity provider")

type Config struct {
	// BaseURL is the identity server origin.
	BaseURL string `yaml:"base_url" validate:"required,url"`
	// ApplicationID selects the application space on the server.
	ApplicationID string `yaml:"application_id" validate:"required"`
	// TenantID, when set, is sent with every request so multi-tenant
	// deployments can route the conversation.
	TenantID string `yaml:"tenant_id"`
	// Timeout replaces DefaultTimeout when set.
	Timeout time.Duration `yaml:"timeout"`
}

type Client struct {
	baseURL       string
	applicationID string
	tenantID      string
	timeout       time.Duration
	hc            *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, e.g. to add TLS
// configuration or test doubles.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transport: base URL is required")
	}
	if cfg.ApplicationID == "" {
		return nil, fmt.Errorf("transport: application id is required")
	}
	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		applicationID: cfg.ApplicationID,
		tenantID:      cfg.TenantID,
		timeout:       cfg.Timeout,
		hc:            &http.Client{},
	}
	if c.timeout == 0 {
		c.timeout = DefaultTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint is the conversation URL all requests go to.
func (c *Client) Endpoint() string {
	return fmt.Sprintf("%s/auth/%s", c.baseURL, c.applicationID)
}

// BaseURL returns the configured server origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type sendOptions struct {
	timeout    time.Duration
	actionName string
}

type SendOption func(*sendOptions)

// WithTimeout overrides the per-request timeout; the polling flow uses
// this for its long ping requests.
func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) {
		o.timeout = d
	}
}

// WithActionName labels the request in logs.
func WithActionName(name string) SendOption {
	return func(o *sendOptions) {
		o.actionName = name
	}
}

// Send posts one request body and returns the decoded message. Errors
// reported by the server, whether as an HTTP error body or a "~error"
// field on the message, come back as *msg.Error, unwrapped, so the
// caller sees exactly what the server said.
func (c *Client) Send(ctx context.Context, req *msg.Request, opts ...SendOption) (*msg.Message, error) {
	so := sendOptions{timeout: c.timeout}
	for _, opt := range opts {
		opt(&so)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("unable to encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, so.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("unable to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.tenantID != "" {
		httpReq.Header.Set("X-Tenant-Id", c.tenantID)
	}

	slog.Debug("sending request", "type", req.Type, "action", so.actionName, "thid", thid(req))

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("unable to reach identity provider: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var srvErr msg.Error
		if err := json.Unmarshal(respBody, &srvErr); err != nil || srvErr.Code == "" {
			return nil, fmt.Errorf("identity provider returned HTTP %d", resp.StatusCode)
		}
		return nil, &srvErr
	}

	if len(respBody) == 0 {
		return nil, ErrNoResponse
	}

	message, err := msg.Parse(respBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoResponse, err)
	}

	if message.Err != nil {
		return nil, message.Err
	}

	return message, nil
}

func thid(req *msg.Request) string {
	if req.Thread == nil {
		return ""
	}
	return req.Thread.Thid
}
