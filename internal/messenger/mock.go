package messenger

import (
	"context"
	"sync"

	"github.com/kiara-bot/kiara/internal/models"
)

// SentMessage records one call made against the MockSender.
type SentMessage struct {
	Kind        string // "typing", "text", "template", "attachment"
	RecipientID string
	PageToken   string
	Text        string
	Template    models.Template
	ImageURL    string
}

// MockSender is a mock implementation of Sender for testing.
type MockSender struct {
	mu   sync.Mutex
	sent []SentMessage

	// Err, when set, is returned from every send call.
	Err error
}

// NewMockSender creates a new mock sender.
func NewMockSender() *MockSender {
	return &MockSender{}
}

func (m *MockSender) record(msg SentMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *MockSender) SendTyping(ctx context.Context, recipientID, pageToken string) error {
	return m.record(SentMessage{Kind: "typing", RecipientID: recipientID, PageToken: pageToken})
}

func (m *MockSender) SendText(ctx context.Context, recipientID, pageToken, text string) error {
	return m.record(SentMessage{Kind: "text", RecipientID: recipientID, PageToken: pageToken, Text: text})
}

func (m *MockSender) SendTemplate(ctx context.Context, recipientID, pageToken string, tpl models.Template) error {
	return m.record(SentMessage{Kind: "template", RecipientID: recipientID, PageToken: pageToken, Template: tpl})
}

func (m *MockSender) SendAttachment(ctx context.Context, recipientID, pageToken, imageURL string) error {
	return m.record(SentMessage{Kind: "attachment", RecipientID: recipientID, PageToken: pageToken, ImageURL: imageURL})
}

// SetErr sets the error returned from subsequent send calls; nil clears it.
func (m *MockSender) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// Sent returns a copy of the recorded calls.
func (m *MockSender) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// Reset clears the recorded calls.
func (m *MockSender) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

// Compile-time check that MockSender implements Sender.
var _ Sender = (*MockSender)(nil)
