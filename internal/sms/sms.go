// Package sms delivers booking confirmation texts over Twilio.
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender delivers a short text message to a phone number.
type Sender interface {
	SendSMS(ctx context.Context, toNumber, body string) error
}

// Opts holds configuration options for the Twilio sender.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio sender.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number.
func WithFromNumber(number string) Option {
	return func(o *Opts) { o.FromNumber = number }
}

// TwilioSender implements Sender using the Twilio REST API.
type TwilioSender struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewTwilioSender creates a Twilio-backed SMS sender. Options not provided
// fall back to the TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and
// TWILIO_FROM_NUMBER environment variables.
func NewTwilioSender(opts ...Option) (*TwilioSender, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		slog.Error("Twilio credentials incomplete",
			"accountSIDSet", cfg.AccountSID != "", "authTokenSet", cfg.AuthToken != "", "fromNumberSet", cfg.FromNumber != "")
		return nil, fmt.Errorf("twilio credentials not set")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	slog.Debug("TwilioSender created", "fromNumber", cfg.FromNumber)
	return &TwilioSender{client: client, fromNumber: cfg.FromNumber}, nil
}

// SendSMS sends a text message to the given phone number.
func (t *TwilioSender) SendSMS(ctx context.Context, toNumber, body string) error {
	slog.Debug("SendSMS invoked", "to", toNumber, "bodyLength", len(body))

	params := &api.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(t.fromNumber)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio CreateMessage failed", "error", err, "to", toNumber)
		return fmt.Errorf("failed to send SMS to %s: %w", toNumber, err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Info("SMS sent", "to", toNumber, "sid", sid)
	return nil
}

// Compile-time check that TwilioSender implements Sender.
var _ Sender = (*TwilioSender)(nil)
