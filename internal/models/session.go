// Package models defines session state structures for booking flows.
package models

import "time"

// Session tracks one user's progress through a booking flow.
//
// StepIndex is 0 while awaiting the start confirmation and N (1-based) while
// awaiting the answer to step N. It only moves forward, except that the
// custom-date branch keeps the index in place while AwaitingCustomDate is set.
type Session struct {
	UserID             string            `json:"user_id"`
	StepIndex          int               `json:"step_index"`
	Steps              []StepDefinition  `json:"steps"`
	Answers            map[string]string `json:"answers"`
	AwaitingCustomDate bool              `json:"awaiting_custom_date"`
	OrderSourceID      string            `json:"order_source_id"`
	StartedAt          time.Time         `json:"started_at"`
}

// CurrentStep returns the definition of the step whose answer is pending,
// which is the step shown when the index last advanced.
func (s *Session) CurrentStep() (StepDefinition, bool) {
	if s.StepIndex < 1 || s.StepIndex > len(s.Steps) {
		return StepDefinition{}, false
	}
	return s.Steps[s.StepIndex-1], true
}

// Expired reports whether the session started longer than ttl ago.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.StartedAt) > ttl
}

// Order is a completed booking handed off to persistent storage. Answers are
// persisted as JSON, whose keys serialize in sorted order, so storage columns
// stay deterministic.
type Order struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	SourceID    string            `json:"source_id"`
	Answers     map[string]string `json:"answers"`
	CompletedAt time.Time         `json:"completed_at"`
}
