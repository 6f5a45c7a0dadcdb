// Package messenger wraps the Facebook Graph API send surface for Kiara.
//
// Every send targets /me/messages with a page access token. Failures are
// returned to the caller, which logs and drops them; sends are
// fire-and-forget at the platform level.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/kiara-bot/kiara/internal/models"
)

// DefaultGraphAPIVersion is used when no version is configured.
const DefaultGraphAPIVersion = "v21.0"

// Sender is the outbound adapter consumed by the scheduler.
type Sender interface {
	// SendTyping turns on the typing indicator for a recipient.
	SendTyping(ctx context.Context, recipientID, pageToken string) error

	// SendText sends a plain text message.
	SendText(ctx context.Context, recipientID, pageToken, text string) error

	// SendTemplate sends a structured template attachment.
	SendTemplate(ctx context.Context, recipientID, pageToken string, tpl models.Template) error

	// SendAttachment sends an image attachment by URL.
	SendAttachment(ctx context.Context, recipientID, pageToken, imageURL string) error
}

// Opts holds configuration options for the Graph API client.
type Opts struct {
	GraphAPIVersion string
	BaseURL         string
	HTTPClient      *http.Client
}

// Option defines a configuration option for the Graph API client.
type Option func(*Opts)

// WithGraphAPIVersion overrides the Graph API version segment.
func WithGraphAPIVersion(version string) Option {
	return func(o *Opts) { o.GraphAPIVersion = version }
}

// WithBaseURL overrides the Graph API base URL (used in tests).
func WithBaseURL(baseURL string) Option {
	return func(o *Opts) { o.BaseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = client }
}

// Client sends messages through the Graph API.
type Client struct {
	version    string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Graph API client.
func NewClient(opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.GraphAPIVersion == "" {
		cfg.GraphAPIVersion = DefaultGraphAPIVersion
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	slog.Debug("Messenger client created", "version", cfg.GraphAPIVersion)
	return &Client{version: cfg.GraphAPIVersion, baseURL: cfg.BaseURL, httpClient: cfg.HTTPClient}
}

// messageRequest is the /me/messages request body.
type messageRequest struct {
	Recipient    recipientRef `json:"recipient"`
	Message      *messageBody `json:"message,omitempty"`
	SenderAction string       `json:"sender_action,omitempty"`
}

type recipientRef struct {
	ID string `json:"id"`
}

type messageBody struct {
	Text       string           `json:"text,omitempty"`
	Attachment *json.RawMessage `json:"attachment,omitempty"`
}

// SendTyping turns on the typing indicator for a recipient.
func (c *Client) SendTyping(ctx context.Context, recipientID, pageToken string) error {
	req := messageRequest{Recipient: recipientRef{ID: recipientID}, SenderAction: "typing_on"}
	return c.post(ctx, pageToken, req)
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, recipientID, pageToken, text string) error {
	req := messageRequest{Recipient: recipientRef{ID: recipientID}, Message: &messageBody{Text: text}}
	return c.post(ctx, pageToken, req)
}

// SendTemplate sends a structured template attachment.
func (c *Client) SendTemplate(ctx context.Context, recipientID, pageToken string, tpl models.Template) error {
	raw, err := json.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}
	attachment := json.RawMessage(raw)
	req := messageRequest{Recipient: recipientRef{ID: recipientID}, Message: &messageBody{Attachment: &attachment}}
	return c.post(ctx, pageToken, req)
}

// SendAttachment sends a reusable image attachment by URL.
func (c *Client) SendAttachment(ctx context.Context, recipientID, pageToken, imageURL string) error {
	raw, err := json.Marshal(map[string]any{
		"type": "image",
		"payload": map[string]any{
			"url":         imageURL,
			"is_reusable": true,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode attachment: %w", err)
	}
	attachment := json.RawMessage(raw)
	req := messageRequest{Recipient: recipientRef{ID: recipientID}, Message: &messageBody{Attachment: &attachment}}
	return c.post(ctx, pageToken, req)
}

func (c *Client) post(ctx context.Context, pageToken string, body messageRequest) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode send request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/me/messages?access_token=%s", c.baseURL, c.version, url.QueryEscape(pageToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("send API returned %d: %s", resp.StatusCode, respBody)
	}
	slog.Debug("Messenger send succeeded", "recipient", body.Recipient.ID, "typing", body.SenderAction != "")
	return nil
}

// Compile-time check that Client implements Sender.
var _ Sender = (*Client)(nil)
