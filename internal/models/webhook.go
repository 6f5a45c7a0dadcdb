// Package models defines the inbound webhook payload and decoded actions.
package models

import "strings"

// WebhookPayload is the body of a Graph API webhook delivery.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry is one page's batch of events inside a delivery.
type WebhookEntry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging,omitempty"`
	Changes   []FeedChange     `json:"changes,omitempty"`
}

// Principal identifies a user or page in an event.
type Principal struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Message is the text-message part of a messaging event.
type Message struct {
	MID  string `json:"mid,omitempty"`
	Text string `json:"text"`
}

// Postback is a structured button-click event.
type Postback struct {
	Title   string `json:"title,omitempty"`
	Payload string `json:"payload"`
}

// MessagingEvent is a single Messenger event: either a message or a postback.
type MessagingEvent struct {
	Sender    Principal `json:"sender"`
	Recipient Principal `json:"recipient"`
	Timestamp int64     `json:"timestamp"`
	Message   *Message  `json:"message,omitempty"`
	Postback  *Postback `json:"postback,omitempty"`
}

// FeedChange is a page feed change notification.
type FeedChange struct {
	Field string    `json:"field"`
	Value FeedValue `json:"value"`
}

// FeedValue carries the details of a feed change. Item is "comment" for the
// events this service cares about.
type FeedValue struct {
	Item      string     `json:"item"`
	CommentID string     `json:"comment_id,omitempty"`
	PostID    string     `json:"post_id,omitempty"`
	Verb      string     `json:"verb,omitempty"`
	Message   string     `json:"message,omitempty"`
	From      *Principal `json:"from,omitempty"`
}

// ActionKind tags a decoded inbound action.
type ActionKind string

const (
	// ActionConfirm is an affirmative answer to the start confirmation.
	ActionConfirm ActionKind = "confirm"
	// ActionCancel aborts the booking flow.
	ActionCancel ActionKind = "cancel"
	// ActionChoiceAnswer carries a selected choice value.
	ActionChoiceAnswer ActionKind = "choice_answer"
	// ActionCustomOverrideStart switches the current step to free-text date entry.
	ActionCustomOverrideStart ActionKind = "custom_override_start"
)

// InboundAction is the tagged result of decoding a postback payload.
type InboundAction struct {
	Kind  ActionKind `json:"kind"`
	Value string     `json:"value,omitempty"`
}

// Postback payload tokens understood by the router.
const (
	PayloadConfirm      = "BOOKING_YES"
	PayloadCancel       = "BOOKING_NO"
	PayloadAnswerPrefix = "BOOKING_ANSWER_"

	// CustomDateValue is the sentinel choice value that switches a step to
	// free-text date entry.
	CustomDateValue = "Other date"
)

// EncodeAnswerPayload builds the postback payload for a choice value. Spaces
// become underscores so the token survives the payload round trip.
func EncodeAnswerPayload(value string) string {
	return PayloadAnswerPrefix + strings.ReplaceAll(value, " ", "_")
}

// DecodeActionPayload turns a postback payload token into a tagged action.
// Decoding happens once, at the router boundary; everything downstream works
// with the tagged variant.
func DecodeActionPayload(payload string) (InboundAction, bool) {
	switch {
	case payload == PayloadConfirm:
		return InboundAction{Kind: ActionConfirm}, true
	case payload == PayloadCancel:
		return InboundAction{Kind: ActionCancel}, true
	case strings.HasPrefix(payload, PayloadAnswerPrefix):
		value := strings.ReplaceAll(strings.TrimPrefix(payload, PayloadAnswerPrefix), "_", " ")
		if value == CustomDateValue {
			return InboundAction{Kind: ActionCustomOverrideStart}, true
		}
		return InboundAction{Kind: ActionChoiceAnswer, Value: value}, true
	default:
		return InboundAction{}, false
	}
}
