package sms

import (
	"context"
	"sync"
)

// SentSMS records one SendSMS call made against the MockSender.
type SentSMS struct {
	To   string
	Body string
}

// MockSender is a mock implementation of Sender for testing.
type MockSender struct {
	mu   sync.Mutex
	sent []SentSMS

	// Err, when set, is returned from every SendSMS call.
	Err error
}

// NewMockSender creates a new mock SMS sender.
func NewMockSender() *MockSender {
	return &MockSender{}
}

func (m *MockSender) SendSMS(ctx context.Context, toNumber, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentSMS{To: toNumber, Body: body})
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockSender) Sent() []SentSMS {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentSMS, len(m.sent))
	copy(out, m.sent)
	return out
}

// Compile-time check that MockSender implements Sender.
var _ Sender = (*MockSender)(nil)
