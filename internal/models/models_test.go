package models

import (
	"testing"
	"time"
)

func TestParseChoiceOptions(t *testing.T) {
	options := ParseChoiceOptions("Small-small, Large-large, Other date")
	if len(options) != 3 {
		t.Fatalf("got %d options, want 3", len(options))
	}
	if options[0].Label != "Small" || options[0].Value != "small" {
		t.Errorf("options[0] = %+v", options[0])
	}
	if options[2].Label != "Other date" || options[2].Value != "Other date" {
		t.Errorf("bare token should be both label and value: %+v", options[2])
	}
	if got := ParseChoiceOptions("  "); got != nil {
		t.Errorf("blank spec = %+v, want nil", got)
	}
}

func TestDecodeActionPayload(t *testing.T) {
	cases := []struct {
		payload string
		want    InboundAction
		ok      bool
	}{
		{"BOOKING_YES", InboundAction{Kind: ActionConfirm}, true},
		{"BOOKING_NO", InboundAction{Kind: ActionCancel}, true},
		{"BOOKING_ANSWER_large", InboundAction{Kind: ActionChoiceAnswer, Value: "large"}, true},
		{"BOOKING_ANSWER_December_25,_2026", InboundAction{Kind: ActionChoiceAnswer, Value: "December 25, 2026"}, true},
		{"BOOKING_ANSWER_Other_date", InboundAction{Kind: ActionCustomOverrideStart}, true},
		{"GET_STARTED", InboundAction{}, false},
		{"", InboundAction{}, false},
	}
	for _, tc := range cases {
		got, ok := DecodeActionPayload(tc.payload)
		if ok != tc.ok || got != tc.want {
			t.Errorf("DecodeActionPayload(%q) = %+v, %v; want %+v, %v", tc.payload, got, ok, tc.want, tc.ok)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	action, ok := DecodeActionPayload(EncodeAnswerPayload("December 25, 2026"))
	if !ok || action.Kind != ActionChoiceAnswer || action.Value != "December 25, 2026" {
		t.Errorf("round trip = %+v, %v", action, ok)
	}
}

func TestSessionCurrentStep(t *testing.T) {
	sess := Session{
		Steps: []StepDefinition{
			{FieldKey: "name"},
			{FieldKey: "date"},
		},
	}

	if _, ok := sess.CurrentStep(); ok {
		t.Error("index 0 (confirmation gate) has no current step")
	}

	sess.StepIndex = 2
	step, ok := sess.CurrentStep()
	if !ok || step.FieldKey != "date" {
		t.Errorf("CurrentStep = %+v, %v", step, ok)
	}

	sess.StepIndex = 3
	if _, ok := sess.CurrentStep(); ok {
		t.Error("index past the last step has no current step")
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	sess := Session{StartedAt: now.Add(-20 * time.Minute)}
	if sess.Expired(now, 30*time.Minute) {
		t.Error("20 minutes old should not be expired at a 30 minute TTL")
	}
	if !sess.Expired(now, 10*time.Minute) {
		t.Error("20 minutes old should be expired at a 10 minute TTL")
	}
}
