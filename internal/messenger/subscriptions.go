package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// SubscribedFields are the webhook fields a page must be subscribed to for
// the bot to receive messages, postbacks and feed comments.
var SubscribedFields = []string{"feed", "messages", "messaging_postbacks", "message_reads", "message_deliveries"}

// Subscription describes one page app subscription as returned by the Graph API.
type Subscription struct {
	ID               string   `json:"id"`
	SubscribedFields []string `json:"subscribed_fields"`
}

// SubscribePage subscribes the app to the page's webhook fields.
func (c *Client) SubscribePage(ctx context.Context, pageID, pageToken string) error {
	endpoint := fmt.Sprintf("%s/%s/%s/subscribed_apps", c.baseURL, c.version, url.PathEscape(pageID))
	form := url.Values{
		"subscribed_fields": {strings.Join(SubscribedFields, ",")},
		"access_token":      {pageToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build subscribe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("subscribe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("subscribe returned %d: %s", resp.StatusCode, body)
	}
	slog.Info("Page subscribed", "pageID", pageID, "fields", SubscribedFields)
	return nil
}

// GetSubscriptions lists the page's current app subscriptions.
func (c *Client) GetSubscriptions(ctx context.Context, pageID, pageToken string) ([]Subscription, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/subscribed_apps?access_token=%s",
		c.baseURL, c.version, url.PathEscape(pageID), url.QueryEscape(pageToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build subscriptions request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subscriptions request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("subscriptions returned %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Data []Subscription `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode subscriptions: %w", err)
	}
	return result.Data, nil
}
